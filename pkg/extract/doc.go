// Package extract finds category links, product links and image candidates
// in loosely structured catalog markup.
//
// A page is parsed once into an x/net/html tree. goquery drives link
// discovery and CSS scoping; antchfx/htmlquery drives XPath scoping over the
// same tree.
//
// Image discovery walks candidate nodes in document order and applies an
// ordered strategy list per node:
//
//  1. img: the node's own src (then data-src, data-original), or for a
//     scoped container every descendant img;
//  2. style: url(...) references in the inline style attribute;
//  3. data-attr: data-src, data-original, data-image or data-bg.
//
// The first strategy that yields something wins for that node. If no node
// yields anything, anchors whose href ends in an image extension are used
// instead. Results are deduplicated by URL, first occurrence kept.
package extract
