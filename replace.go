package puzzle

import "fmt"

// ReplaceItemType classifies a single substitution site produced by the
// Planner.
type ReplaceItemType int

const (
	ReplaceContent ReplaceItemType = iota
	ReplaceChunkedContent
	ReplacePlaceholder
	ReplaceModelScript
)

func (t ReplaceItemType) String() string {
	switch t {
	case ReplaceContent:
		return "content"
	case ReplaceChunkedContent:
		return "chunked-content"
	case ReplacePlaceholder:
		return "placeholder"
	case ReplaceModelScript:
		return "model-script"
	default:
		return "unknown"
	}
}

// ReplaceItem is a single sentinel substitution site: Key is the exact
// literal token embedded in the compiled shell, unique per
// (fragment, partial, type).
type ReplaceItem struct {
	Type    ReplaceItemType
	Key     string
	Partial string
}

// ReplaceSet groups every ReplaceItem produced for one fragment, along with
// the attribute bag of its "main" occurrence — the bag used to build the
// upstream request query string.
type ReplaceSet struct {
	Fragment           *FragmentDescriptor
	ReplaceItems        []ReplaceItem
	FragmentAttributes map[string]string
}

// waitedContentKey is the sentinel for a waited fragment's content:
// {fragment|<name>_<from>_<partial>}.
func waitedContentKey(name, from, partial string) string {
	return fmt.Sprintf("{fragment|%s_%s_%s}", name, from, partial)
}

// chunkedContentKey is the sentinel (and puzzle-chunk attribute value) for
// a chunked fragment's content: <name>_<partial>.
func chunkedContentKey(name, partial string) string {
	return fmt.Sprintf("%s_%s", name, partial)
}

// placeholderKey is the sentinel for a chunked fragment's placeholder
// container: <name>_<partial>_placeholder.
func placeholderKey(name, partial string) string {
	return chunkedContentKey(name, partial) + "_placeholder"
}

// modelScriptKey is the sentinel for a fragment's page-model script:
// {fragment|<name>_pageModel}.
func modelScriptKey(name string) string {
	return fmt.Sprintf("{fragment|%s_pageModel}", name)
}
