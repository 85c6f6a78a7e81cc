package main

import (
	"github.com/bwmarrin/discordgo"
	"github.com/railops/fleetcrisis/discordbot"
)

var (
	discordSession   *discordgo.Session
	discordChannelID string
	discordBot       *discordbot.Bot
)

// SetUpDiscord creates the Discord session used for operator alerts and the bot,
// if it is enabled in the settings
func SetUpDiscord() {
	discordBox, present := secrets.GetBox("discord")
	if !present {
		discordLog.Println("Discord Keybox not found, Discord functions disabled")
		return
	}
	token, present := discordBox.Get("token")
	if !present {
		discordLog.Fatal("Discord bot token not present in keybox")
	}
	discordChannelID, present = discordBox.Get("channel")
	if !present {
		discordLog.Fatal("Discord alert channel not present in keybox")
	}

	var err error
	discordSession, err = discordgo.New("Bot " + token)
	if err != nil {
		discordLog.Println(err)
		discordSession = nil
	}
}

// DiscordBot starts answering operator commands on Discord. SetUpDiscord and the
// emergency handler must have been set up before
func DiscordBot() {
	if discordSession == nil {
		return
	}
	discordBox, _ := secrets.GetBox("discord")
	var operators []string
	if v, present := discordBox.Get("operators"); present {
		operators = splitList(v)
	}

	var err error
	discordBot, err = discordbot.Start(discordSession, discordChannelID, operators, handler, discordLog)
	if err != nil {
		discordLog.Println(err)
		return
	}
	discordLog.Println("Bot is now running.")
}

// TearDownDiscord cleanly closes down the Discord session
func TearDownDiscord() {
	if discordBot != nil {
		discordBot.Stop()
	}
}
