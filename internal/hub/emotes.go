package hub

import "strings"

var emotes = map[string]string{
	"/shrug":      "¯\\_(ツ)_/¯",
	"/lenny":      "( ͡° ͜ʖ ͡°)",
	"/tableflip":  "(╯°□°）╯︵ ┻━┻",
	"/unflip":     "┬─┬ノ( º _ ºノ)",
	"/bear":       "ʕ •ᴥ•ʔ",
	"/disapprove": "ಠ_ಠ",
	"/hug":        "(づ｡◕‿‿◕｡)づ",
	"/dance":      "└|∵|┐  ♪  ┌|∵|┘",
	"/flex":       "ᕦ(ò_ó)ᕤ",
	"/cry":        "(╥﹏╥)",
	"/coffee":     "☕",
	"/fix":        "🛠️",
	"/deploy":     "🚀",
}

// expandEmote rewrites a leading slash command into its emote. Unknown
// commands are posted unchanged.
func expandEmote(text string) string {
	if !strings.HasPrefix(text, "/") {
		return text
	}
	cmd, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	if cmd == "/sparkles" {
		if rest == "" {
			return "✨"
		}
		return "✨ " + rest + " ✨"
	}
	emote, ok := emotes[cmd]
	if !ok {
		return text
	}
	if rest == "" {
		return emote
	}
	return rest + " " + emote
}
