package puzzle

import (
	"errors"
	"strings"
	"testing"
)

func TestRenderAssetTag(t *testing.T) {
	tests := []struct {
		name    string
		asset   Asset
		wantSub string
		wantErr error
	}{
		{
			name:    "external sync",
			asset:   Asset{Name: "a", InjectType: InjectExternal, Link: "/a.js"},
			wantSub: `src="/a.js"`,
		},
		{
			name:    "external async",
			asset:   Asset{Name: "a", InjectType: InjectExternal, Link: "/a.js", ExecuteType: ExecuteAsync},
			wantSub: " async",
		},
		{
			name:    "inline",
			asset:   Asset{Name: "a", InjectType: InjectInline, Content: "x=1"},
			wantSub: ">x=1<",
		},
		{
			name:    "unknown",
			asset:   Asset{Name: "a", InjectType: "bogus"},
			wantErr: ErrUnknownInjectType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderAssetTag(tt.asset)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("renderAssetTag() error = %v", err)
			}
			if !strings.Contains(got, tt.wantSub) {
				t.Errorf("got %q, want substring %q", got, tt.wantSub)
			}
		})
	}
}

func TestDependencyInjectorDedup(t *testing.T) {
	descriptors := []*FragmentDescriptor{
		{Name: "a", Config: &FragmentConfig{Dependencies: []Dependency{{Name: "shared", Link: "/s.js"}}}},
		{Name: "b", Config: &FragmentConfig{Dependencies: []Dependency{{Name: "shared", Link: "/s.js"}, {Name: "other", Link: "/o.js"}}}},
		{Name: "c", Config: nil},
	}

	html := DependencyInjector{}.Inject(descriptors)

	if strings.Count(html, `puzzle-dependency="shared"`) != 1 {
		t.Errorf("expected shared dependency exactly once, got: %s", html)
	}
	if !strings.Contains(html, `puzzle-dependency="other"`) {
		t.Errorf("expected other dependency present, got: %s", html)
	}
}
