package htmltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"inline tags", "<p>Hello <strong>world</strong>!</p>", "Hello world!"},
		{"paragraphs", "<p>First paragraph</p><p>Second paragraph</p>", "First paragraph\nSecond paragraph"},
		{"br variants", "Line 1<br>Line 2<br/>Line 3", "Line 1\nLine 2\nLine 3"},
		{"divs", "<div>First</div><div>Second</div>", "First\nSecond"},
		{"list items", "<ul><li>Item 1</li><li>Item 2</li></ul>", "- Item 1\n- Item 2"},
		{"named entities", "Tom &amp; Jerry &lt;3 &quot;Hello&quot; &apos;World&apos;", `Tom & Jerry <3 "Hello" 'World'`},
		{"numeric entities", "Caf&#233; &amp; r&#233;sum&#233;", "Café & résumé"},
		{"hex entities", "Greek: &#x3A9; &#x3C0;", "Greek: Ω π"},
		{"nbsp", "Word&nbsp;with&nbsp;spaces", "Word with spaces"},
		{"script and style", `<p>Content</p><script>alert("bad");</script><style>body{color:red}</style><p>More content</p>`, "Content\nMore content"},
		{"blank lines", "<p>  First line  </p>\n\n<p>   </p><p>Second line</p>", "First line\nSecond line"},
		{"carriage returns", "Line 1\r\nLine 2", "Line 1\nLine 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToText(tt.in))
		})
	}
}

func TestToTextNotice(t *testing.T) {
	in := `
        <div class="content">
          <h2>공지사항 제목</h2>
          <p>안녕하세요. 다음과 같이 공지합니다.</p>
          <ul>
            <li>첫 번째 항목</li>
            <li>두 번째 항목 &amp; 설명</li>
          </ul>
          <p>문의사항이 있으시면 연락주세요.<br>감사합니다.</p>
        </div>
      `
	want := "공지사항 제목\n안녕하세요. 다음과 같이 공지합니다.\n- 첫 번째 항목\n- 두 번째 항목 & 설명\n문의사항이 있으시면 연락주세요.\n감사합니다."
	assert.Equal(t, want, ToText(in))
}
