package timetable

import (
	"fmt"
	"html"
	"io"
	"time"
)

const pageHeader = `<html>
<head>
<title>Stundenplan</title>
<meta http-equiv="Content-Type" content="text/html; charset=utf-8">
<style>
.width1 { width: 120px }
.width2 { width: 150px }
.height2 { height: 47px }
.text_top { vertical-align: top }
.centered { text-align: center; vertical-align: middle }
.smallbleak { color: #999999; font-size: small }
.bleak { color: #999999 }
.smallbold { font-size: small; font-weight: bold }
.no { text-decoration: line-through }
.spaceleft { padding-left: 0.5em }
.spaceright { padding-right: 0.5em }
.normal { background-color: rgba(245, 160, 35, 0.7) }
.exam { background-color: rgba(255, 235, 0, 0.7) }
.change { background-color: rgba(200, 160, 210) }
.cancel { background-color: rgba(195, 195, 195) }
.warn { background-color: rgba(255, 50, 50) }
</style>
</head>
<body>
`

// WritePageHeader 输出页面头部与生成时间
func WritePageHeader(w io.Writer, generated time.Time) error {
	_, err := fmt.Fprintf(w, "%s<span class=\"smallbold\">Stand: %s</span><br/>\n",
		pageHeader, generated.Format("15:04 Uhr, 02.01.2006"))
	return err
}

// WritePageFooter 输出页面结尾
func WritePageFooter(w io.Writer) error {
	_, err := io.WriteString(w, "</body>\n</html>\n")
	return err
}

// SectionHeading 课表标题：名字，班级课表附带班级
func SectionHeading(firstname, class string) string {
	heading := html.EscapeString(firstname)
	if class != "" {
		heading += " (" + html.EscapeString(class) + ")"
	}
	return "<h2>" + heading + "</h2>\n"
}
