// Package host provides the environment the engine runs in: a cooperative
// single-goroutine event loop and an HTML document that raises animation
// events for newly inserted elements.
//
// # Overview
//
// A browser signals element insertion through the animationstart event of a
// CSS animation attached to the element by a stylesheet rule. Document
// reproduces that contract over golang.org/x/net/html trees:
//
//   - Stylesheet maps cascadia selectors to animation names
//   - Document.InsertBefore and Document.AppendChild attach a subtree and
//     queue one animation event per matching element, in document order
//   - Document.Load does the same for the elements already in the tree, then
//     raises DOMContentLoaded
//
// # Event Loop
//
// Loop owns two queues. Tasks (SetTimeout with no delay) run in FIFO order.
// Frame callbacks (RequestFrame) run together at the next frame boundary;
// callbacks requested while a frame runs wait for the following one.
//
// All document and engine calls happen on the goroutine that drives the loop,
// either through RunUntilIdle or Run. Other goroutines hand work over with
// Post.
package host
