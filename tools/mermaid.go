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

import (
	"fmt"
	"io"
	"strings"
)

type MermaidOpts struct {
	// ShowTriggers labels rule nodes with their trigger
	// expressions.
	ShowTriggers bool `json:"showTriggers"`

	// RuleFill is the fill color for rule nodes.
	RuleFill string `json:"ruleFill,omitempty"`
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) input file
// for the analyzed rule set.  See Dot.
func Mermaid(a *RuleSetAnalysis, w io.Writer, opts *MermaidOpts) error {
	if opts == nil {
		opts = &MermaidOpts{
			ShowTriggers: true,
			RuleFill:     "#bcf2db",
		}
	}

	fmt.Fprintf(w, "graph LR\n")

	nids := make(map[string]string)
	num := 0

	node := func(kind, name, left, right string) string {
		key := kind + ":" + name
		if nid, already := nids[key]; already {
			return nid
		}
		num++
		nid := fmt.Sprintf("n%d", num)
		nids[key] = nid
		fmt.Fprintf(w, "  %s%s\"%s\"%s\n", nid, left, strings.Replace(name, `"`, `'`, -1), right)
		return nid
	}

	for _, ra := range a.Rules {
		label := ra.Name
		if opts.ShowTriggers && ra.Rule != nil {
			label += "<br/>" + ra.Rule.Trigger
		}
		rid := node("r", label, "[", "]")
		if opts.RuleFill != "" {
			fmt.Fprintf(w, "  style %s fill:%s\n", rid, opts.RuleFill)
		}
		for _, name := range ra.Inputs(a.constants) {
			fmt.Fprintf(w, "  %s --> %s\n", node("v", name, "(", ")"), rid)
		}
		for _, topic := range ra.Action.Topics {
			fmt.Fprintf(w, "  %s -- emit --> %s\n", rid, node("t", topic, ">", "]"))
		}
		for _, u := range []*Usage{ra.Trigger, ra.Action} {
			for _, name := range u.Globals {
				fmt.Fprintf(w, "  %s -.-> %s\n", rid, node("g", name, "[(", ")]"))
			}
		}
	}

	return nil
}
