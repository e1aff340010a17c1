package memory

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"512m", 512 * mib},
		{"1g", gib},
		{"4G", 4 * gib},
		{"10M", 10 * mib},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q) unexpected error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Parse(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"x", "512", "1t", "-1m", ""} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", in)
		}
	}
}

func TestPlanWorkers(t *testing.T) {
	cases := []struct {
		total, per int64
		want       int
	}{
		{10 * gib, 1 * gib, 8},
		{1 * gib, 1 * gib, 1},
		{100, 1 * gib, 1},
		{0, 1 * gib, 1},
	}
	for _, c := range cases {
		got := PlanWorkers(c.total, c.per)
		if got != c.want {
			t.Errorf("PlanWorkers(%d, %d) = %d, want %d", c.total, c.per, got, c.want)
		}
		if got < 1 {
			t.Errorf("PlanWorkers(%d, %d) = %d, want >= 1", c.total, c.per, got)
		}
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{512 * mib, "512M"},
		{gib, "1.0G"},
		{int64(1.5 * gib), "1.5G"},
		{0, "0M"},
	}
	for _, c := range cases {
		got := Format(c.bytes)
		if got != c.want {
			t.Errorf("Format(%d) = %q, want %q", c.bytes, got, c.want)
		}
	}
}
