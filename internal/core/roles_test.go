package core

import "testing"

func TestRoleSetHas(t *testing.T) {
	rs := ParseRoleSet("Entry, Report")
	if !rs.Has(RoleEntry) || !rs.Has(RoleReport) {
		t.Fatalf("expected Entry and Report membership, got %q", rs)
	}
	if rs.Has(RoleCategory) {
		t.Fatalf("did not expect Category membership")
	}
}

func TestRoleSetSuperAdminGrantsEverything(t *testing.T) {
	rs := NewRoleSet(RoleSuperAdmin)
	for _, role := range []string{RoleEntry, RoleReport, RoleCategory, "Anything"} {
		if !rs.Has(role) {
			t.Fatalf("SuperAdmin should grant %q", role)
		}
	}
}

func TestRoleSetGrantedIgnoresSuperAdminAbsorption(t *testing.T) {
	rs := ParseRoleSet("SuperAdmin, Entry")
	if !rs.Granted(RoleSuperAdmin) || !rs.Granted(RoleEntry) {
		t.Fatalf("expected literal SuperAdmin and Entry grants, got %q", rs)
	}
	for _, role := range []string{RoleReport, RoleCategory} {
		if rs.Granted(role) {
			t.Fatalf("%q is not literally granted", role)
		}
		if !rs.Has(role) {
			t.Fatalf("SuperAdmin should still satisfy %q via Has", role)
		}
	}
}

func TestRoleSetDisplay(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{[]string{RoleEntry, RoleSuperAdmin, RoleReport}, "SuperAdmin"},
		{[]string{RoleEntry, RoleReport}, "Entry, Report"},
		{nil, ""},
	}
	for i, tc := range cases {
		if got := NewRoleSet(tc.in...).Display(); got != tc.want {
			t.Fatalf("case %d expected %q, got %q", i, tc.want, got)
		}
	}
}

func TestRoleSetDropsBlanksAndDuplicates(t *testing.T) {
	rs := ParseRoleSet("Entry,, Entry , Report")
	got := rs.Names()
	if len(got) != 2 || got[0] != RoleEntry || got[1] != RoleReport {
		t.Fatalf("expected [Entry Report], got %v", got)
	}
}

func TestRoleSetEmpty(t *testing.T) {
	if !ParseRoleSet("").Empty() {
		t.Fatalf("expected empty set")
	}
	if ParseRoleSet("Entry").Empty() {
		t.Fatalf("did not expect empty set")
	}
}
