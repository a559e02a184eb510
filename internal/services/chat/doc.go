// Package chat is the terminal side of direct mode.
//
// Lines read from the input become text messages on the channel. Messages
// arriving from the channel are filtered through the dedup cache and written
// to the output as "<time> <uid>: <body>", or "<uid> joined." for join
// announcements. Own messages are recorded in the cache before they are sent,
// so the server echoing them back prints nothing.
package chat
