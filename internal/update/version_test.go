package update

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{name: "equal", a: "1.2.3", b: "1.2.3", want: 0},
		{name: "minor less", a: "1.2.3", b: "1.3.0", want: -1},
		{name: "major greater", a: "2.0.0", b: "1.9.9", want: 1},
		{name: "zero padding", a: "1.2", b: "1.2.0", want: 0},
		{name: "zero padding reversed", a: "1.2.0.0", b: "1.2", want: 0},
		{name: "longer is greater", a: "1.2.0.1", b: "1.2", want: 1},
		{name: "v prefix ignored", a: "v1.4.0", b: "1.4.0", want: 0},
		{name: "v prefix both sides", a: "v1.4.0", b: "V1.10.0", want: -1},
		{name: "numeric not lexicographic", a: "1.10.0", b: "1.9.0", want: 1},
		{name: "non-numeric segment is zero", a: "1.x.3", b: "1.0.3", want: 0},
		{name: "prerelease suffix degrades", a: "1.2.3-beta", b: "1.2.0", want: 0},
		{name: "empty equals zero", a: "", b: "0.0.0", want: 0},
		{name: "empty less than one", a: "", b: "0.0.1", want: -1},
		{name: "whitespace trimmed", a: " 0.2.0 ", b: "0.1.9", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCompareIsAntisymmetric(t *testing.T) {
	pairs := [][2]string{{"1.0.0", "1.0.1"}, {"2.1", "2.0.9"}, {"0.1.0", "v0.1.0"}}
	for _, p := range pairs {
		if Compare(p[0], p[1]) != -Compare(p[1], p[0]) {
			t.Errorf("Compare not antisymmetric for %q / %q", p[0], p[1])
		}
	}
}

func TestIsNewer(t *testing.T) {
	if !IsNewer("0.2.0", "0.1.9") {
		t.Error("IsNewer(0.2.0, 0.1.9) = false, want true")
	}
	if IsNewer("0.2.0", "0.2") {
		t.Error("IsNewer(0.2.0, 0.2) = true, want false")
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := map[string]string{
		"v1.2.3": "1.2.3",
		"1.2.3":  "1.2.3",
		" V2.0 ": "2.0",
		"":       "",
	}
	for in, want := range tests {
		if got := NormalizeVersion(in); got != want {
			t.Errorf("NormalizeVersion(%q) = %q, want %q", in, got, want)
		}
	}
}
