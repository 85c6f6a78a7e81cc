package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gbl08ma/keybox"
	"github.com/gbl08ma/sqalx"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/railops/fleetcrisis/emergency"
	"github.com/railops/fleetcrisis/memstore"
	"github.com/railops/fleetcrisis/notify"
	"github.com/railops/fleetcrisis/sqlstore"
)

var (
	rdb           *sqlx.DB
	rootSqalxNode sqalx.Node
	secrets       *keybox.Keybox
	mainLog       = log.New(os.Stdout, "", log.Ldate|log.Ltime)
	notifLog      = log.New(os.Stdout, "notif", log.Ldate|log.Ltime)
	discordLog    = log.New(os.Stdout, "discord", log.Ldate|log.Ltime)
	emergencyLog  = log.New(os.Stdout, "emergency", log.Ldate|log.Ltime)
	webLog        = log.New(os.Stdout, "web", log.Ldate|log.Ltime)

	handler    *emergency.Handler
	dispatcher *notify.Dispatcher
	feed       *notify.FeedBackend

	// GitCommit is provided by govvv at compile-time
	GitCommit = "???"
	// BuildDate is provided by govvv at compile-time
	BuildDate = "???"
)

func main() {
	var err error
	mainLog.Println("Server starting, opening keybox...")
	secrets, err = keybox.Open(SecretsPath)
	if err != nil {
		mainLog.Fatalln(err)
	}
	mainLog.Println("Keybox opened")

	policy, err := policyFromKeybox(secrets)
	if err != nil {
		mainLog.Fatalln(err)
	}

	store, err := openStore()
	if err != nil {
		mainLog.Fatalln(err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	SetUpDiscord()
	notifier := SetUpNotifier()
	dispatcher = notify.NewDispatcher(notifier, EventQueueSize, notifLog)
	stats := newStatsClient()
	if stats != nil {
		notifier.SetCounter(stats)
		dispatcher.SetCounter(stats)
	}
	dispatcher.Start()
	defer dispatcher.Stop()

	handler = emergency.NewHandler(store, policy, dispatcher, emergencyLog)

	if stats != nil {
		go StatsSender(stats)
	}
	go APIserver()

	DiscordBot()
	defer TearDownDiscord()

	// Wait here until CTRL-C or other term signal is received.
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc
	mainLog.Println("Server stopping")
}

// openStore connects to the database named in the keybox. Debug builds without a database
// run against an in-memory store holding a demo fleet
func openStore() (emergency.Store, error) {
	databaseURI, present := secrets.Get("databaseURI")
	if !present {
		if !DEBUG {
			mainLog.Fatalln("Database connection string not present in keybox")
		}
		mainLog.Println("Database connection string not present in keybox, using in-memory store")
		store := memstore.New()
		if err := seedDemoFleet(store); err != nil {
			return nil, err
		}
		return store, nil
	}

	mainLog.Println("Opening database...")
	var err error
	rdb, err = sqlx.Open("postgres", databaseURI)
	if err != nil {
		return nil, err
	}

	err = rdb.Ping()
	if err != nil {
		return nil, err
	}
	rdb.SetMaxOpenConns(MaxDBconnectionPoolSize)

	rootSqalxNode, err = sqalx.New(rdb)
	if err != nil {
		return nil, err
	}
	mainLog.Println("Database opened")
	return sqlstore.New(rootSqalxNode), nil
}
