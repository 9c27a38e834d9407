// Command angler watches a fishing game window, detects the bobber and
// clicks when a fish bites.
//
//	angler run [--dry-run] [--preview] [--dashboard]
//	angler stats [-n N]
//	angler watch [--events [--points]]
//	angler ctl pause|stop
//	angler config init|show
package main
