// Package chat sends text and file messages to Synology Chat incoming
// webhooks, publishing local files first so the chat server can fetch them.
package chat
