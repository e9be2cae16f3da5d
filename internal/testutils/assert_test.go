package testutils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingT struct {
	failures []string
}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func TestJSONAsserter_Diff(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		actual   string
		expected string
		equal    bool
	}{
		{
			name:     "identical",
			actual:   `{"label":"wave","startTime":1}`,
			expected: `{"startTime":1,"label":"wave"}`,
			equal:    true,
		},
		{
			name:     "presence placeholder matches any value",
			actual:   `{"label":"wave","deviceId":"3f1c"}`,
			expected: `{"label":"wave","deviceId":"<<PRESENCE>>"}`,
			equal:    true,
		},
		{
			name:     "extra keys ignored by default",
			actual:   `{"label":"wave","note":"x"}`,
			expected: `{"label":"wave"}`,
			equal:    true,
		},
		{
			name:     "extra keys reported when strict",
			opts:     []Option{WithIgnoreExtraKeys(false)},
			actual:   `{"label":"wave","note":"x"}`,
			expected: `{"label":"wave"}`,
		},
		{
			name:     "ignored fields removed at any depth",
			opts:     []Option{WithIgnoredFields("timeStamp")},
			actual:   `{"accData":{"xAxisData":[1],"timeStamp":[99]}}`,
			expected: `{"accData":{"xAxisData":[1],"timeStamp":[1]}}`,
			equal:    true,
		},
		{
			name:     "value mismatch",
			actual:   `{"label":"wave"}`,
			expected: `{"label":"punch"}`,
		},
		{
			name:     "invalid actual",
			actual:   `{`,
			expected: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := NewJSONAsserter(t).WithOptions(tt.opts...).diff(tt.actual, tt.expected)
			if tt.equal {
				assert.Empty(t, diff)
			} else {
				assert.NotEmpty(t, diff)
			}
		})
	}
}

func TestTextAsserter(t *testing.T) {
	t.Run("trims lines and strips colors", func(t *testing.T) {
		rt := &recordingT{}
		NewTextAsserterWithInterface(rt).Assert("\x1b[33mStart:\x1b[0m  1\n   Marks: 0  \n", "Start:  1\nMarks: 0")
		assert.Empty(t, rt.failures)
	})

	t.Run("empty lines kept by default", func(t *testing.T) {
		rt := &recordingT{}
		NewTextAsserterWithInterface(rt).Assert("a\n\nb", "a\nb")
		assert.Len(t, rt.failures, 1)
	})

	t.Run("empty lines ignored on request", func(t *testing.T) {
		rt := &recordingT{}
		NewTextAsserterWithInterface(rt).WithOptions(WithIgnoreEmptyLines(true)).Assert("a\n\nb", "a\nb")
		assert.Empty(t, rt.failures)
	})

	t.Run("failure carries unified diff", func(t *testing.T) {
		rt := &recordingT{}
		NewTextAsserterWithInterface(rt).Assert("Devices: 2\n", "Devices: 1\n")
		if assert.Len(t, rt.failures, 1) {
			assert.Contains(t, rt.failures[0], "-Devices: 1")
			assert.Contains(t, rt.failures[0], "+Devices: 2")
		}
	})
}
