package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/docopt/docopt-go"
	"golang.org/x/term"

	"github.com/sznitowski/servicios-connect/live"
)

const LiveCtlVersion = "0.1.0"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Servicios live stream control.

There is no default api url. Without one, nothing connects.

Usage:
    livectl tail [--config=<config>] [--api_url=<api_url>] [--jwt=<jwt>]
        [--path=<path>] [--ws]
    livectl count [--config=<config>] [--api_url=<api_url>] [--jwt=<jwt>]
    livectl watch [--config=<config>] [--api_url=<api_url>] [--jwt=<jwt>]
        [--path=<path>]
    livectl list [--config=<config>] [--api_url=<api_url>] [--jwt=<jwt>]
        [--page=<page>] [--limit=<limit>] [--unseen]
    livectl seen [--config=<config>] [--api_url=<api_url>] [--jwt=<jwt>]
        (--ids=<ids> | --all)
    livectl delete [--config=<config>] [--api_url=<api_url>] [--jwt=<jwt>]
        <notification_id>

Options:
    -h --help            Show this screen.
    --version            Show version.
    --config=<config>    Config file path.
    --api_url=<api_url>  Backend api url, including the /api prefix.
    --jwt=<jwt>          Session JWT. Prompted when omitted.
    --path=<path>        Stream path under the api base.
    --ws                 Use the websocket transport.
    --page=<page>        List page.
    --limit=<limit>      List page size.
    --unseen             Only unseen notifications.
    --ids=<ids>          Comma-separated notification ids.
    --all                All notifications.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], LiveCtlVersion)
	if err != nil {
		panic(err)
	}

	if tail_, _ := opts.Bool("tail"); tail_ {
		tail(opts)
	} else if count_, _ := opts.Bool("count"); count_ {
		count(opts)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		watch(opts)
	} else if list_, _ := opts.Bool("list"); list_ {
		list(opts)
	} else if seen_, _ := opts.Bool("seen"); seen_ {
		seen(opts)
	} else if delete_, _ := opts.Bool("delete"); delete_ {
		deleteNotification(opts)
	}
}

func loadConfig(opts docopt.Opts) *live.ClientConfig {
	configPath, _ := opts.String("--config")
	if configPath == "" {
		configPath = live.DefaultConfigPath()
	}
	config, err := live.LoadClientConfig(configPath)
	if err != nil {
		Err.Fatalf("Could not load config (%s).", err)
	}

	if apiUrl, _ := opts.String("--api_url"); apiUrl != "" {
		config.ApiUrl = apiUrl
	}
	if jwt, _ := opts.String("--jwt"); jwt != "" {
		config.ByJwt = jwt
	}
	if streamPath, _ := opts.String("--path"); streamPath != "" {
		config.StreamPath = streamPath
	}
	if ws_, _ := opts.Bool("--ws"); ws_ {
		config.Transport = "ws"
	}

	if config.ByJwt == "" {
		config.ByJwt = promptJwt()
	}
	if config.ApiUrl == "" {
		Err.Fatal("No api url configured.")
	}
	return config
}

func promptJwt() string {
	fmt.Print("jwt: ")
	jwtBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		Err.Fatalf("Could not read jwt (%s).", err)
	}
	return strings.TrimSpace(string(jwtBytes))
}

// subscribe to the stream and print each event with its classification
func tail(opts docopt.Opts) {
	config := loadConfig(opts)

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := live.NewSession(cancelCtx, config)
	defer session.Close()

	events := make(chan *live.PushEvent, 16)
	subscription := session.Subscribe(&live.Subscriber{
		OnEvent: func(event *live.PushEvent) {
			events <- event
		},
		OnStatus: func(connected bool) {
			if connected {
				Out.Printf("* connected")
			} else {
				Out.Printf("* disconnected")
			}
		},
	})
	defer subscription.Close()

	if subscription.Disabled() {
		Err.Fatal("Stream is disabled (missing api url or jwt).")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sigs:
			return
		case event := <-events:
			class := live.Classify(event)
			switch class {
			case live.ClassNotification, live.ClassBoth:
				Out.Printf("[%s] #%d %s: %s", class, event.Id, live.LabelForType(event.Type), event.Message)
				if href := event.RequestHref(); href != "" {
					Out.Printf("    -> %s", href)
				}
			case live.ClassDomainUpdate:
				Out.Printf("[%s] request #%d status=%s", class, event.Request.Id, event.Request.Status)
			default:
				Out.Printf("[%s] ignored", class)
			}
		}
	}
}

func count(opts docopt.Opts) {
	config := loadConfig(opts)

	api := live.NewNotificationApi(config.ApiUrl)
	defer api.Close()
	api.SetByJwt(config.ByJwt)

	result, err := api.UnreadCountSync(context.Background())
	if err != nil {
		Err.Fatalf("Count failed (%s).", err)
	}
	Out.Printf("%d", result.Total)
}

// show the authoritative count, then follow live increments
func watch(opts docopt.Opts) {
	config := loadConfig(opts)

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := live.NewSession(cancelCtx, config)
	defer session.Close()

	unread := session.Unread()
	if err := unread.Initialize(cancelCtx); err != nil {
		Err.Printf("Count fetch failed, starting from zero (%s).", err)
	}
	Out.Printf("unread: %d", unread.Count())

	removeWatcher := unread.AddWatcher(func(count int) {
		Out.Printf("unread: %d", count)
	})
	defer removeWatcher()

	subscription := session.Subscribe(unread.Subscriber())
	defer subscription.Close()
	if subscription.Disabled() {
		Err.Fatal("Stream is disabled (missing api url or jwt).")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
}

func list(opts docopt.Opts) {
	config := loadConfig(opts)

	api := live.NewNotificationApi(config.ApiUrl)
	defer api.Close()
	api.SetByJwt(config.ByJwt)

	args := &live.NotificationListArgs{}
	if page, err := opts.Int("--page"); err == nil {
		args.Page = page
	}
	if limit, err := opts.Int("--limit"); err == nil {
		args.Limit = limit
	}
	if unseen_, _ := opts.Bool("--unseen"); unseen_ {
		args.Unseen = true
	}

	result, err := api.NotificationsSync(context.Background(), args)
	if err != nil {
		Err.Fatalf("List failed (%s).", err)
	}
	for _, notification := range result.Items {
		seenMark := " "
		if notification.Seen() {
			seenMark = "*"
		}
		Out.Printf("%s #%d %s %s %s", seenMark, notification.Id, notification.CreatedAt, notification.Type, notification.Message)
	}
	Out.Printf("page %d/%d, %d total", result.Meta.Page, result.Meta.Pages, result.Meta.Total)
}

func seen(opts docopt.Opts) {
	config := loadConfig(opts)

	api := live.NewNotificationApi(config.ApiUrl)
	defer api.Close()
	api.SetByJwt(config.ByJwt)

	args := &live.MarkSeenArgs{}
	if all_, _ := opts.Bool("--all"); all_ {
		args.All = true
	} else {
		idsStr, _ := opts.String("--ids")
		for _, part := range strings.Split(idsStr, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				Err.Fatalf("Invalid notification id (%s).", part)
			}
			args.Ids = append(args.Ids, id)
		}
		if len(args.Ids) == 0 {
			Err.Fatal("No notification ids.")
		}
	}

	result, err := api.MarkSeenSync(context.Background(), args)
	if err != nil {
		Err.Fatalf("Mark seen failed (%s).", err)
	}
	Out.Printf("%d marked seen", result.Affected)
}

func deleteNotification(opts docopt.Opts) {
	config := loadConfig(opts)

	api := live.NewNotificationApi(config.ApiUrl)
	defer api.Close()
	api.SetByJwt(config.ByJwt)

	idStr, _ := opts.String("<notification_id>")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		Err.Fatalf("Invalid notification id (%s).", idStr)
	}

	if _, err := api.DeleteNotificationSync(context.Background(), id); err != nil {
		Err.Fatalf("Delete failed (%s).", err)
	}
	Out.Printf("deleted #%d", id)
}
