/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
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

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"io"
	"strings"

	"github.com/Comcast/tempo/crew"

	"gopkg.in/yaml.v2"
)

func escapeHTML(s string) string {
	s = strings.Replace(s, "&", `&amp;`, -1)
	s = strings.Replace(s, "<", `&lt;`, -1)
	s = strings.Replace(s, ">", `&gt;`, -1)
	return s
}

// ruleLabel renders the rule's settings (without its action) as YAML.
func ruleLabel(r *crew.Rule) string {
	bs, err := yaml.Marshal(&crew.Rule{
		Trigger:     r.Trigger,
		Mode:        r.Mode,
		Concurrency: r.Concurrency,
	})
	if err != nil {
		return err.Error()
	}
	// The empty name and action come first.
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(string(bs)), "\n") {
		if line == `name: ""` || line == `action: ""` {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Dot makes a Graphviz dot file for the analyzed rule set: host
// variables feed the rules whose triggers use them, and rules point
// at the topics they emit and the globals they touch.
//
// The optional highlight is the name of a rule to draw in red.
func Dot(a *RuleSetAnalysis, w io.Writer, highlight string) error {
	fmt.Fprintf(w, "digraph G {\n")
	fmt.Fprintf(w, `  graph [rankdir=LR,nodesep=0.3,ranksep=0.6]
  node [style="rounded,filled"]
  edge [fontsize = "10"]
`)

	for _, name := range a.HostVariables {
		fmt.Fprintf(w, "  \"v:%s\" [shape=\"ellipse\", fillcolor=\"#99ddc8\", label=\"%s\"]\n", name, name)
	}
	for _, topic := range a.Topics {
		fmt.Fprintf(w, "  \"t:%s\" [shape=\"cds\", fillcolor=\"#2d93ad\", label=\"%s\"]\n", topic, topic)
	}
	for _, name := range a.Globals {
		fmt.Fprintf(w, "  \"g:%s\" [shape=\"cylinder\", fillcolor=\"#f4e285\", label=\"%s\"]\n", name, name)
	}

	for _, ra := range a.Rules {
		color, fillcolor := "black", "#52aa5e"
		if ra.Name == highlight {
			color, fillcolor = "red", "#f98b8b"
		}
		label := escapeHTML(ra.Name)
		if ra.Rule != nil {
			src := escapeHTML(ruleLabel(ra.Rule))
			label += `<FONT POINT-SIZE="8">` +
				`<BR/>` + strings.Replace(src+"\n", "\n", `<BR ALIGN="LEFT"/>`, -1) +
				`</FONT>`
		}
		fmt.Fprintf(w, "  \"r:%s\" [shape=\"note\", color=\"%s\", fillcolor=\"%s\", label=<%s>]\n",
			ra.Name, color, fillcolor, label)

		for _, name := range ra.Inputs(a.constants) {
			fmt.Fprintf(w, "  \"v:%s\" -> \"r:%s\"\n", name, ra.Name)
		}
		for _, topic := range ra.Action.Topics {
			fmt.Fprintf(w, "  \"r:%s\" -> \"t:%s\" [label=\"emit\"]\n", ra.Name, topic)
		}
		for _, u := range []*Usage{ra.Trigger, ra.Action} {
			for _, name := range u.Globals {
				fmt.Fprintf(w, "  \"r:%s\" -> \"g:%s\" [style=\"dashed\"]\n", ra.Name, name)
			}
		}
	}

	fmt.Fprintf(w, "}\n")

	return nil
}
