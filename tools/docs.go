/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package tools

import (
	"fmt"
	"io"
	"strings"

	"github.com/Comcast/tempo/builtins"

	md "github.com/russross/blackfriday/v2"
)

// Signature renders a call template like "round(x: numeric[,
// precision: numeric])".
func Signature(d *builtins.Descriptor) string {
	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteString("(")
	optionals := 0
	for i, a := range d.Args {
		if a.Types&builtins.Optional != 0 {
			b.WriteString("[")
			optionals++
		}
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", a.Name, a.Types)
		if a.Types&builtins.Multiple != 0 {
			b.WriteString(", ...")
		}
	}
	b.WriteString(strings.Repeat("]", optionals))
	b.WriteString(")")
	return b.String()
}

// RenderBuiltinHTML writes a table of the given functions.  Each
// Descriptor's Doc is markdown.
func RenderBuiltinHTML(ds []*builtins.Descriptor, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<div class="builtins"><table>`)
	for _, d := range ds {
		f(`<tr class="builtin"><td><span id="%s" class="builtinName">%s</span></td><td>`, d.Name, d.Name)
		f(`<div class="signature"><code>%s</code></div>`, escapeHTML(Signature(d)))
		if d.Returns != 0 {
			f(`<div class="returns">returns %s</div>`, d.Returns)
		}
		if d.Async {
			f(`<div class="async">asynchronous</div>`)
		}
		if d.Doc != "" {
			f(`<div class="builtinDoc doc">%s</div>`, md.Run([]byte(d.Doc)))
		}
		f(`</td></tr>`)
	}
	f(`</table></div>`)

	return nil
}

// RenderBuiltinPage writes a complete HTML page with a section per
// named set of functions.
func RenderBuiltinPage(title string, sections []string, sets map[string][]*builtins.Descriptor, out io.Writer, cssFiles []string) error {
	if cssFiles == nil {
		cssFiles = []string{"/static/builtins.css"}
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, title)

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `
  </head>
  <body>
    <h1>%s</h1>
`, title)

	for _, section := range sections {
		ds, have := sets[section]
		if !have {
			return fmt.Errorf("no functions for section '%s'", section)
		}
		fmt.Fprintf(out, "    <h2 id=\"%s\">%s</h2>\n", section, section)
		if err := RenderBuiltinHTML(ds, out); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)

	return nil
}
