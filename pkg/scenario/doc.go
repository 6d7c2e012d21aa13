// Package scenario runs scripted sequences of tool calls loaded from YAML.
//
// A scenario names a list of steps. Each step calls one tool with JSON
// arguments, may save values from the tool's result metadata into variables
// and may assert on the text result:
//
//	name: smoke
//	steps:
//	  - tool: launch_browser
//	    args: {headless: true}
//	    save: {session: session_id}
//	  - tool: browser_evaluate
//	    args: {session_id: $session, script: "1+1"}
//	    expect: "2"
//
// Sessions launched by a scenario are closed when it ends, whether or not
// it passed.
package scenario
