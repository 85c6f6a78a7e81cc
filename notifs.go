package main

import (
	fcm "github.com/NaySoftware/go-fcm"
	"github.com/railops/fleetcrisis/notify"
)

// SetUpNotifier builds the notifier with a backend for every channel configured in the keybox.
// The log and feed channels are always available
func SetUpNotifier() *notify.Notifier {
	backends := []notify.Backend{notify.NewLogBackend(notifLog)}

	feedTitle, link := "Metro service announcements", ""
	if webBox, present := secrets.GetBox("web"); present {
		if v, present := webBox.Get("feedTitle"); present {
			feedTitle = v
		}
		link, _ = webBox.Get("websiteURL")
	}
	feed = notify.NewFeedBackend(feedTitle, link, FeedMaxItems)
	backends = append(backends, feed)

	fcmServerKey, present := secrets.Get("firebaseServerKey")
	if present {
		topicPrefix := "fleetcrisis-"
		if DEBUG {
			topicPrefix = "fleetcrisis-debug-"
		}
		backends = append(backends, notify.NewPushBackend(fcm.NewFcmClient(fcmServerKey), topicPrefix))
	} else {
		notifLog.Println("Firebase server key not present in keybox, push notifications disabled")
	}

	if discordSession != nil {
		backends = append(backends, notify.NewDiscordBackend(discordSession, discordChannelID))
	}

	return notify.NewNotifier(notifLog, backends...)
}
