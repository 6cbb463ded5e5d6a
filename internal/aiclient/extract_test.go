package aiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "  [1, 2] ", want: "[1, 2]"},
		{in: "```json\n[1]\n```", want: "[1]"},
		{in: "```JSON\n{\"a\":1}\n```\n", want: `{"a":1}`},
		{in: "```\n[]\n```", want: "[]"},
		{in: "```[1]```", want: "[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantArr   string
		wantArrOK bool
		wantObj   string
		wantObjOK bool
	}{
		{
			name:      "array with chatter",
			reply:     `Sure! [{"student_id":"a","status":1}] Hope that helps.`,
			wantArr:   `[{"student_id":"a","status":1}]`,
			wantArrOK: true,
			wantObj:   `{"student_id":"a","status":1}`,
			wantObjOK: true,
		},
		{
			name:      "fenced object",
			reply:     "```json\n{\"trends\":\"[none]\"}\n```",
			wantArr:   "[none]",
			wantArrOK: true,
			wantObj:   `{"trends":"[none]"}`,
			wantObjOK: true,
		},
		{
			name:  "no json",
			reply: "I could not read the image.",
		},
		{
			name:  "closing before opening",
			reply: "] and [ or } then {",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arr, ok := ExtractArray(tt.reply)
			assert.Equal(t, tt.wantArrOK, ok)
			assert.Equal(t, tt.wantArr, arr)

			obj, ok := ExtractObject(tt.reply)
			assert.Equal(t, tt.wantObjOK, ok)
			assert.Equal(t, tt.wantObj, obj)
		})
	}
}
