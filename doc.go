// Package tempo provides a small embeddable expression and scripting
// language with timed re-evaluation and suspendable execution.
//
// The value model and scanner are in package 'core', expressions in
// 'expr', and scripts in 'script'.  Package 'crew' hosts rules built
// from them, and 'cmd/tempo' is the command-line tool.
package tempo
