// Package browser manages concurrent Chromium sessions controlled over the
// remote debugging protocol.
//
// A Manager launches browsers through a Driver, registers each one under a
// unique session id and runs navigation, script evaluation, screenshot and
// content commands against them. Sessions are fully independent: a command
// on one session never waits on I/O of another.
//
// # Architecture
//
// The package is built around four pieces:
//
//  1. Registry: maps session ids to Handles. Its lock only guards the map.
//  2. Handle: a reference-counted connection. The registry holds one
//     reference and every command holds another for its duration, so a
//     session closed mid-command is torn down when that command returns.
//  3. Pump: one goroutine per session draining the connection's event
//     stream. It keeps the page arena current and fans events out to
//     subscribers. If the stream ends on its own the session is evicted.
//  4. Page arena: stable PageIDs for the session's pages. DefaultPage
//     resolves to the live page with the lowest id.
//
// # Session Lifecycle
//
//  1. Launch: pick a free debugging port, start the browser, confirm the
//     port answers and read back the real head mode.
//  2. Use: Navigate opens a new page; other commands target a page id or
//     the default page.
//  3. Close: remove the session; the browser exits once idle.
//
// # Errors
//
// Every returned error is an *Error whose Kind is one of the Err sentinels,
// so callers can branch with errors.Is.
//
// # Example Usage
//
//	driver := pwdriver.New(pwdriver.Options{})
//	if err := driver.Initialize(); err != nil {
//	    return err
//	}
//	mgr, err := browser.NewManager(driver, browser.Options{})
//	if err != nil {
//	    return err
//	}
//	defer mgr.Shutdown(context.Background())
//
//	res, err := mgr.Launch(ctx, browser.LaunchConfig{})
//	pageID, err := mgr.Navigate(ctx, res.ID, "https://example.com")
//	out, err := mgr.ExecuteScriptOn(ctx, res.ID, pageID, "document.title")
package browser
