// Package browser exposes browser sessions as tools.
//
// Each tool takes JSON arguments and returns a text result for the caller
// plus a metadata map with the structured values (session ids, page ids,
// file paths) that later steps may need.
//
// # Tool Visibility
//
// launch_browser and list_browser_sessions are always visible. Every other
// tool implements tools.Conditional and is shown only while at least one
// session exists.
//
// # Pages
//
// Tools that act on a page accept an optional page_id. When it is omitted
// the session's oldest open page is used. browser_navigate without page_id
// opens a new page and reports its id.
//
// # Example Usage
//
//	registry, err := tools.NewRegistry(browser.NewTools(manager)...)
//	out, meta, err := registry.Execute(ctx, "launch_browser", json.RawMessage(`{"headless":true}`))
//	id := meta["session_id"].(string)
package browser
