package translate

import (
	"reflect"
	"testing"
)

func TestAssemble(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		fragments []Fragment
		want      []string
	}{
		{
			name:      "joined pair",
			fragments: []Fragment{{Text: "a", Incomplete: true}, {Text: "b"}},
			want:      []string{"ab"},
		},
		{
			name: "flag with path value",
			fragments: []Fragment{
				{Text: "go"},
				{Text: "--output=", Incomplete: true},
				{Text: "/hostdirs/x/out.png"},
				{Text: "/hostdirs/y/in.fits"},
			},
			want: []string{"go", "--output=/hostdirs/x/out.png", "/hostdirs/y/in.fits"},
		},
		{
			name:      "chain of three",
			fragments: []Fragment{{Text: "x", Incomplete: true}, {Text: "y", Incomplete: true}, {Text: "z"}},
			want:      []string{"xyz"},
		},
		{
			name:      "trailing incomplete is flushed",
			fragments: []Fragment{{Text: "go"}, {Text: "--tile=", Incomplete: true}},
			want:      []string{"go", "--tile="},
		},
		{
			name:      "explicit empty argument survives",
			fragments: []Fragment{{Text: ""}, {Text: "b"}},
			want:      []string{"", "b"},
		},
		{
			name:      "empty input",
			fragments: nil,
			want:      nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Assemble(tt.fragments)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Assemble() = %q, want %q", got, tt.want)
			}
		})
	}
}
