package report

import (
	"bytes"
	"text/template"

	"github.com/ChuLiYu/murdock-reporter/internal/aggregate"
	"github.com/ChuLiYu/murdock-reporter/internal/snapshot"
)

var badgeTemplate = template.Must(template.New("badge").Parse(`<svg xmlns="http://www.w3.org/2000/svg" width="77" height="20">
<defs>
  <style type="text/css">
    <![CDATA[
      rect {
        fill: #555;
      }
      .passed {
        fill: rgb(68, 204, 17);
      }
      .failed {
        fill: rgb(224, 93, 68);
      }
    ]]>
  </style>
</defs>
<rect rx="3" width="77" height="20" />
<rect rx="3" x="24" width="53" height="20" class="{{.}}" />
<rect x="24" width="4" height="20" class="{{.}}" />
<g fill="#fff" text-anchor="middle" font-family="DejaVu Sans,Verdana,Geneva,sans-serif" font-size="11">
  <text x="12" y="14">CI</text>
  <text x="50" y="14">{{.}}</text>
</g>
</svg>
`))

// Badge renders the pass/fail SVG badge.
func Badge(passed bool) []byte {
	status := aggregate.StatusFailed
	if passed {
		status = aggregate.StatusPassed
	}
	var buf bytes.Buffer
	// 模板與參數都是常數，不會失敗
	_ = badgeTemplate.Execute(&buf, status)
	return buf.Bytes()
}

// WriteBadge writes Badge(passed) to path atomically.
func WriteBadge(path string, passed bool) error {
	return snapshot.WriteFile(path, Badge(passed))
}
