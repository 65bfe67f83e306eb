// Package importer loads recorded tests from JSON files into a store.
//
// A root directory is laid out by owner:
//
//	recordings/
//	    login.json          -> default owner
//	    pixel-7/
//	        checkout.json   -> owner "pixel-7"
//
// Each file holds one test object or an array of them. Deeper directories
// and hidden entries are ignored. ImportDir imports everything once; Watch
// re-imports files as they change.
package importer
