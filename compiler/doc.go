/*

Process of compilation

Program Text ->
	parse ->
Abstract Syntax Tree (ast) ->
	analyze ->
Abstract Syntax Tree (checked) ->
	lower (flatir.Lower or ir.Lower) ->
Flat IR or Graph IR ->
	format ->
Textual Dump

*/
package compiler
