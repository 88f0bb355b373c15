package chat

import "strings"

// Fixed protocol lines sent by the server.
const (
	PromptUsername = "Enter your username: "
	RejectFull     = "Server is full. Please try again later.\n"
)

// Client-side sentinels that end a session.
const (
	CommandQuit = "quit"
	CommandExit = "exit"
)

func welcomeLine(username string) string {
	return "Welcome to the chat, " + username + "!\n"
}

func joinNotice(username string) string {
	return "Server: " + username + " has joined the chat\n"
}

func leaveNotice(username string) string {
	return "Server: " + username + " has left the chat\n"
}

func chatLine(username, text string) string {
	return username + ": " + text + "\n"
}

// firstLine returns the text before the first newline. Anything after it in
// the same read is discarded.
func firstLine(data []byte) string {
	line, _, _ := strings.Cut(string(data), "\n")
	return line
}

// IsSentinel reports whether line is one of the session-ending commands.
func IsSentinel(line string) bool {
	switch strings.TrimSpace(line) {
	case CommandQuit, CommandExit:
		return true
	default:
		return false
	}
}
