package registry

import (
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// MatchedAction pairs a resolved Action with the path params its route
// pattern captured.
type MatchedAction struct {
	Action     *domain.Action
	PathParams map[string]string
}

// Match resolves an Action by transport route: it tests each web-bound
// action's declared pattern against the inbound verb and path, first
// registered match wins. Captured `{param}` segments come back so the
// dispatcher can merge them into the raw params. Collisions between
// patterns were already rejected at registration, so first-match is
// deterministic, not load-order luck.
func (r *Registry) Match(method, path string) (*MatchedAction, bool) {
	method = strings.ToUpper(strings.TrimSpace(method))
	segments := splitPath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		candidate := r.actions[name]
		if candidate.Web == nil {
			continue
		}
		if !strings.EqualFold(candidate.Web.Method, method) {
			continue
		}
		params, matched := matchPattern(splitPath(candidate.Web.Route), segments)
		if matched {
			return &MatchedAction{Action: candidate, PathParams: params}, true
		}
	}
	return nil, false
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// matchPattern compares pattern segments against path segments. A literal
// segment must match exactly; a `{name}` segment matches any single
// segment and captures it.
func matchPattern(pattern, path []string) (map[string]string, bool) {
	if len(pattern) != len(path) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range pattern {
		if name, ok := paramSegment(seg); ok {
			if params == nil {
				params = make(map[string]string)
			}
			params[name] = path[i]
			continue
		}
		if seg != path[i] {
			return nil, false
		}
	}
	return params, true
}

// bindingsCollide reports whether two web bindings could both match one
// request: same verb, same segment count, and every segment pair is either
// equal literals or involves a parameter (which matches anything).
func bindingsCollide(a, b *domain.WebBinding) bool {
	if a == nil || b == nil {
		return false
	}
	if !strings.EqualFold(a.Method, b.Method) {
		return false
	}
	as, bs := splitPath(a.Route), splitPath(b.Route)
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		_, aParam := paramSegment(as[i])
		_, bParam := paramSegment(bs[i])
		if aParam || bParam {
			continue
		}
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func paramSegment(seg string) (string, bool) {
	if len(seg) > 2 && strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
		return seg[1 : len(seg)-1], true
	}
	return "", false
}
