package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "trims and drops empties",
			in:   []string{"  kafka-1:9092 ", "", "   ", "kafka-2:9092"},
			want: []string{"kafka-1:9092", "kafka-2:9092"},
		},
		{
			name: "keeps first occurrence order",
			in:   []string{"b", "a", "b ", " a"},
			want: []string{"b", "a"},
		},
		{
			name: "nil in nil out",
			in:   nil,
			want: nil,
		},
		{
			name: "case sensitive",
			in:   []string{"Broker", "broker"},
			want: []string{"Broker", "broker"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrim(tt.in))
		})
	}
}
