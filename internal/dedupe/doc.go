// Package dedupe tracks recently handled event IDs. Matrix sync can
// redeliver events after reconnects; answering one twice would double-bill
// tokens and spam the room.
package dedupe
