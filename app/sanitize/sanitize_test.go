package sanitize

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"Plain title", "Plain title"},
		{"<p>Hello <b>World</b></p>", "Hello World"},
		{"Fish &amp; Chips", "Fish & Chips"},
		{"  <i>padded</i>  ", "padded"},
		{"Café", "Café"},
	}

	for _, tt := range tests {
		if got := Text(tt.input); got != tt.expected {
			t.Errorf("Text(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "allowed tags kept",
			input:    "<p>Hello <strong>there</strong></p>",
			expected: "<p>Hello <strong>there</strong></p>",
		},
		{
			name:     "unknown tags unwrapped",
			input:    `<div class="x"><em>soft</em> text</div>`,
			expected: "soft text",
		},
		{
			name:     "scripts dropped with content",
			input:    `<p>ok</p><script>alert(1)</script><style>p{}</style>`,
			expected: "<p>ok</p>",
		},
		{
			name:     "anchors keep safe href and gain nofollow",
			input:    `<a href="http://x.com/?a=1&b=2" onclick="evil()" title="t">x</a>`,
			expected: `<a href="http://x.com/?a=1&amp;b=2" rel="nofollow">x</a>`,
		},
		{
			name:     "javascript href removed",
			input:    `<a href="javascript:alert(1)">x</a>`,
			expected: `<a rel="nofollow">x</a>`,
		},
		{
			name:     "attributes stripped from allowed tags",
			input:    `<span style="color:red" id="a">red</span><br class="x">`,
			expected: `<span>red</span><br>`,
		},
		{
			name:     "text escaped",
			input:    `1 &lt; 2`,
			expected: `1 &lt; 2`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTML(tt.input); got != tt.expected {
				t.Errorf("HTML(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"http://example.com/a?b=c&d=e#f", "http://example.com/a?b=c&d=e#f"},
		{"http://example.com/café", "http://example.com/caf%C3%A9"},
		{"http://example.com/a b", "http://example.com/a%20b"},
		{"http://example.com/already%20encoded", "http://example.com/already%20encoded"},
		{"http://example.com/~user/(x)", "http://example.com/~user/(x)"},
	}

	for _, tt := range tests {
		if got := URL(tt.input); got != tt.expected {
			t.Errorf("URL(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}
