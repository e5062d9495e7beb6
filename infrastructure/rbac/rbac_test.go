package rbac

import "testing"

func TestMatchPathWildcardSegments(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		ok      bool
	}{
		{pattern: "/depot/api/pallets/*/seal", path: "/depot/api/pallets/1/seal", ok: true},
		{pattern: "/depot/api/manifests/*/pallets/*", path: "/depot/api/manifests/m1/pallets/p1", ok: true},
		{pattern: "/depot/api/exports/receipts/*/comparisons.csv", path: "/depot/api/exports/receipts/r1/comparisons.csv", ok: true},
		{pattern: "/depot/admin/users", path: "/depot/admin/users", ok: true},
		{pattern: "/depot/admin/users", path: "/depot/admin/users/1", ok: false},
		{pattern: "/depot/api/pallets/*/seal", path: "/depot/api/pallets/1/cancel", ok: false},
	}

	for _, tc := range cases {
		if got := matchPath(tc.pattern, tc.path); got != tc.ok {
			t.Fatalf("pattern=%s path=%s expected=%v got=%v", tc.pattern, tc.path, tc.ok, got)
		}
	}
}
