// Package puzzle compiles an HTML page template containing <fragment> tags
// into a request handler that fetches each fragment from its owning gateway
// and streams the composed page to the client.
//
// A template is compiled once, at process startup:
//
//	tmpl, err := puzzle.Compile(ctx, src, puzzle.CompileOptions{
//	    Name:   "home",
//	    Client: gateway.NewClient(nil, logger),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.Handle("/home", tmpl)
//
// Compile walks every <fragment> element, classifies it as waited, chunked,
// static or unfetched, rewrites the document into a shell containing
// sentinel tokens, and returns a *Template whose ServeHTTP fetches fragment
// content in parallel and streams the result using HTTP chunked transfer
// encoding.
//
// # Fragments
//
// A fragment is declared in the template as:
//
//	<fragment name="header" from="header-gw" />
//
// The "from" gateway must have previously been described to the
// FragmentRegistry (directly, or discovered from upstream configuration).
// Compile fails with ErrTemplateNotFound or ErrMultiplePrimaryFragments,
// the two fatal, compile-time error classes. Every other failure — an
// unreachable gateway, a fetch timeout, a missing asset — is recovered to a
// safe substitute at request time and never aborts the response; see
// errors.go for the full taxonomy.
//
// # Lifecycle hooks
//
// Templates may declare page hooks (OnCreate, OnRequest, OnChunk,
// OnResponseEnd) by registering a PageHooks implementation under the
// template's name with a HooksRegistry, resolved at compile time. This
// replaces the source system's embedded, dynamically evaluated script
// block with a statically loaded Go type.
package puzzle
