package telegram

import (
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/text/message"
)

const (
	welcomeText = "Welcome to the Wall Chain Raffle Code Bot!\n" +
		"This bot is created by the Persian community.\n" +
		"Persian Golf\n" +
		"Please select an option:"

	raffleEndedText    = "The raffle has ended!"
	raffleNotEndedText = "The raffle has not yet ended!"
	noParticipantsText = "No participants yet!"
	winnersHeader      = "Raffle winners:\n"
	emptyHandleText    = "Twitter username cannot be empty!"
	genericErrorText   = "An error occurred. Please try again."
	rateLimitedText    = "Please try again shortly."
	unknownActionText  = "Please select an option:"

	// handlePromptMarker identifies the handle prompt in a replied-to
	// message when the prompt id is not known, e.g. after a restart.
	handlePromptMarker = "Twitter username"
	handlePromptText   = "Please enter your Twitter username without @:"
)

func mainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Time Left Until Raffle Ends", string(ActionTimeLeft))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Raffle Results", string(ActionRaffleResult))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Join Raffle", string(ActionJoinRaffle))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Participant Count", string(ActionParticipantCount))),
	)
}

func handlePrompt() tgbotapi.ForceReply {
	return tgbotapi.ForceReply{ForceReply: true}
}

func timeLeftText(p *message.Printer, left time.Duration) string {
	if left <= 0 {
		return raffleEndedText
	}
	days := int64(left / (24 * time.Hour))
	hours := int64(left%(24*time.Hour)) / int64(time.Hour)
	minutes := int64(left%time.Hour) / int64(time.Minute)
	return p.Sprintf("Time left until raffle ends:\n%d days, %d hours, and %d minutes", days, hours, minutes)
}

func countsText(p *message.Printer, starts int64, registered int) string {
	return p.Sprintf("Total users who started the bot: %d\nUsers who joined the raffle: %d", starts, registered)
}

func winnersText(list []string) string {
	lines := make([]string, len(list))
	for i, h := range list {
		lines[i] = atHandle(h)
	}
	return winnersHeader + strings.Join(lines, "\n")
}

func alreadyJoinedText(handle string) string {
	return "You have already joined the raffle with Twitter username: " + atHandle(handle)
}

func alreadyRegisteredText(handle string) string {
	return "You have already registered with Twitter username: " + atHandle(handle)
}

func joinedText(handle string) string {
	return "You have successfully joined the raffle with Twitter username: " + atHandle(handle)
}

// normalizeHandle trims the reply and drops one leading "@".
func normalizeHandle(text string) string {
	h := strings.TrimSpace(text)
	h = strings.TrimPrefix(h, "@")
	return strings.TrimSpace(h)
}

// atHandle renders a handle with a single leading "@". Handles stored
// before normalization may already carry one.
func atHandle(h string) string {
	if strings.HasPrefix(h, "@") {
		return h
	}
	return "@" + h
}
