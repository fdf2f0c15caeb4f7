/*
Package subst implements a streaming placeholder-substitution engine for
line-oriented text templates.

Templates are plain byte sequences whose lines may contain positional
placeholders of the form ${N}, where N is a non-negative decimal index into a
caller-supplied table of string values. The engine pulls the template one line
at a time through the LineSource abstraction, so templates far larger than
available memory can be rendered: peak memory is bounded by the longest single
line plus the values substituted into it, never by the template as a whole.

There is deliberately no templating logic beyond flat positional substitution.
No conditionals, no loops, no escaping; a '$' that does not begin a well-formed
${N} token is ordinary text. Malformed input degrades silently: an index with
no corresponding value substitutes the empty string, and an unterminated ${ is
copied through verbatim. The design comes from constrained devices where a
render must keep going even when the caller's value table is wrong.

For a complete usage example, see the README.md file.
*/
package subst
