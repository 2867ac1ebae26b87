package version

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    ProtocolVersion
		wantErr bool
	}{
		{input: "1.0", want: ProtocolVersion{Major: 1, Minor: 0}},
		{input: "3.7", want: ProtocolVersion{Major: 3, Minor: 7}},
		{input: "12.40", want: ProtocolVersion{Major: 12, Minor: 40}},
		{input: "", wantErr: true},
		{input: "2", wantErr: true},
		{input: "two.zero", wantErr: true},
		{input: "1.2.3", wantErr: true},
		{input: "1.", wantErr: true},
		{input: ".5", wantErr: true},
		{input: "-1.0", wantErr: true},
		{input: "65536.0", wantErr: true},
		{input: " 1.0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"1.0", "2.15", "10.23"} {
		v, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if v.String() != s {
			t.Errorf("Parse(%q).String() = %q", s, v.String())
		}
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"1.0", "1.9", true},
		{"3.1", "3.0", true},
		{"1.0", "2.0", false},
		{"2.5", "1.5", false},
	}

	for _, tt := range tests {
		a, _ := Parse(tt.a)
		b, _ := Parse(tt.b)
		if got := a.Compatible(b); got != tt.want {
			t.Errorf("Compatible(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		// Major-version equality is symmetric.
		if got := b.Compatible(a); got != tt.want {
			t.Errorf("Compatible(%s, %s) = %v, want %v", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestSubprotocol(t *testing.T) {
	if got := Subprotocol(1); got != "roomlink.v1" {
		t.Errorf("Subprotocol(1) = %q, want %q", got, "roomlink.v1")
	}
	if got := Subprotocol(2); got != "roomlink.v2" {
		t.Errorf("Subprotocol(2) = %q, want %q", got, "roomlink.v2")
	}
}

func TestMajorFromSubprotocol(t *testing.T) {
	tests := []struct {
		input   string
		want    uint16
		wantErr bool
	}{
		{input: "roomlink.v1", want: 1},
		{input: "roomlink.v2", want: 2},
		{input: "http/1.1", wantErr: true},
		{input: "roomlink.v", wantErr: true},
		{input: "", wantErr: true},
		{input: "roomlink.vabc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := MajorFromSubprotocol(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MajorFromSubprotocol(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("MajorFromSubprotocol(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestSupportedSubprotocolsMatchCurrent(t *testing.T) {
	v, err := Parse(Current)
	if err != nil {
		t.Fatalf("Parse(Current): %v", err)
	}

	protos := SupportedSubprotocols()
	if len(protos) != 1 {
		t.Fatalf("SupportedSubprotocols() = %v, want one entry", protos)
	}
	if want := Subprotocol(v.Major); protos[0] != want {
		t.Errorf("SupportedSubprotocols()[0] = %q, want %q", protos[0], want)
	}
}
