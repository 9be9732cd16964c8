package core

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewTextReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello,world")...),
			expected: "hello,world",
		},
		{
			name:     "file without BOM",
			input:    []byte("hello,world"),
			expected: "hello,world",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "multibyte text untouched",
			input:    []byte("Société,Zürich"),
			expected: "Société,Zürich",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(NewTextReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestNewTextReaderRepairsInvalidUTF8(t *testing.T) {
	input := []byte{'a', ',', 0xFF, 'b', '\n'}

	result, err := io.ReadAll(NewTextReader(bytes.NewReader(input)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !utf8.Valid(result) {
		t.Errorf("output is not valid UTF-8: %q", result)
	}
	if !strings.HasPrefix(string(result), "a,") || !strings.HasSuffix(string(result), "b\n") {
		t.Errorf("got %q, want surrounding bytes preserved", result)
	}
}

func TestReadAllLimited(t *testing.T) {
	t.Run("under limit", func(t *testing.T) {
		data, err := ReadAllLimited(strings.NewReader("abc"), 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "abc" {
			t.Errorf("got %q, want %q", data, "abc")
		}
	})

	t.Run("over limit", func(t *testing.T) {
		_, err := ReadAllLimited(strings.NewReader("abcd"), 3)
		if err == nil || !strings.Contains(err.Error(), "file too large") {
			t.Errorf("got %v, want file too large error", err)
		}
	})

	t.Run("no limit", func(t *testing.T) {
		data, err := ReadAllLimited(strings.NewReader("abcd"), 0)
		if err != nil || string(data) != "abcd" {
			t.Errorf("got %q, %v", data, err)
		}
	})
}
