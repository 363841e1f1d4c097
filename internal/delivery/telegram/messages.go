package telegram

const (
	msgHelp = "<b>academy-tube admin</b>\n\n" +
		"/compact - merge pending watched segments now\n" +
		"/help - show this message"
	msgCompacted      = "Compacted segments for %d assignment(s)."
	msgUnknownCommand = "Unknown command. Send /help for the list."
	msgInternalError  = "Something went wrong. Check the server logs."
)
