// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// outputFlags are shared by every command that renders a result.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, json, csv or markdown",
			Value:   "text",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write output to a file instead of stdout",
		},
	}
}

// pagingFlags control how much of a paginated result set is loaded.
func pagingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "pages",
			Aliases: []string{"p"},
			Usage:   "Number of pages to load",
			Value:   1,
		},
		&cli.IntFlag{
			Name:  "retries",
			Usage: "Times to retry a failed page",
			Value: 1,
		},
	}
}

func withFlags(groups ...[]cli.Flag) []cli.Flag {
	flags := []cli.Flag{}
	for _, g := range groups {
		flags = append(flags, g...)
	}
	return flags
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Write a config file and initialize the local database",
		Action: r.Setup,
		Commands: []*cli.Command{
			{
				Name:   "cache",
				Usage:  "Show how many title details are cached",
				Action: r.CacheStats,
			},
			{
				Name:  "prune",
				Usage: "Delete cached title details",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Only delete entries older than this (default: cache TTL)",
					},
				},
				Action: r.CachePrune,
			},
		},
	}
}

// authCommand handles sign in, sign out and account management
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage your session and account",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with a username and password, or in the browser",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Account username"},
					&cli.StringFlag{Name: "password", Usage: "Account password, prompted for when omitted"},
					&cli.StringFlag{Name: "code", Usage: "Second-factor code, prompted for when required"},
					&cli.BoolFlag{Name: "browser", Aliases: []string{"b"}, Usage: "Sign in through the web login page"},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored session",
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Show whether a session is stored",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "check", Usage: "Confirm the session with the server"},
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
				},
				Action: r.AuthStatus,
			},
			{
				Name:  "register",
				Usage: "Create an account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Account username", Required: true},
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Email address", Required: true},
					&cli.StringFlag{Name: "password", Usage: "Account password, prompted for when omitted"},
				},
				Action: r.AuthRegister,
			},
			{
				Name:      "verify",
				Usage:     "Confirm an email address",
				Arguments: []cli.Argument{&cli.StringArg{Name: "token"}},
				Action:    r.AuthVerify,
			},
			{
				Name:  "reset",
				Usage: "Reset a forgotten password",
				Commands: []*cli.Command{
					{
						Name:      "request",
						Usage:     "Email a reset link",
						Arguments: []cli.Argument{&cli.StringArg{Name: "email"}},
						Action:    r.AuthResetRequest,
					},
					{
						Name:      "confirm",
						Usage:     "Set a new password with a reset token",
						Arguments: []cli.Argument{&cli.StringArg{Name: "token"}},
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "password", Usage: "New password, prompted for when omitted"},
						},
						Action: r.AuthResetConfirm,
					},
				},
			},
		},
	}
}

func trendingCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "trending",
		Usage: "List trending titles",
		Flags: withFlags(outputFlags(), pagingFlags(), []cli.Flag{
			&cli.BoolFlag{Name: "now-playing", Aliases: []string{"n"}, Usage: "List titles in cinemas instead"},
		}),
		Action: r.Trending,
	}
}

func discoverCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "discover",
		Usage: "Find titles by mood or category",
		Flags: withFlags(outputFlags(), pagingFlags(), []cli.Flag{
			&cli.StringFlag{Name: "mood", Aliases: []string{"m"}, Usage: "Mood to match"},
			&cli.StringFlag{Name: "category", Usage: "Category to browse"},
			&cli.StringFlag{Name: "region", Usage: "Region for availability (default: catalog.region)"},
			&cli.IntSliceFlag{Name: "provider", Usage: "Streaming provider ID, repeatable"},
			&cli.StringSliceFlag{Name: "type", Aliases: []string{"t"}, Usage: "Content type (movie, tv), repeatable"},
			&cli.Float64Flag{Name: "min-rating", Usage: "Minimum rating from 0 to 10"},
			&cli.BoolFlag{Name: "broad", Usage: "Widen the match when results are sparse"},
		}),
		Action: r.Discover,
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search titles and people",
		Arguments: []cli.Argument{&cli.StringArgs{Name: "query", Min: 1, Max: -1}},
		Flags:     withFlags(outputFlags(), pagingFlags()),
		Action:    r.Search,
	}
}

func detailCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "detail",
		Usage:     "Show one title",
		Arguments: []cli.Argument{&cli.Int64Arg{Name: "id"}},
		Flags: withFlags(outputFlags(), []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Media type (movie, tv)", Value: "movie"},
			&cli.StringFlag{Name: "export", Usage: "Write a Markdown page and poster to this directory"},
		}),
		Action: r.Detail,
	}
}

// watchlistCommand handles watchlists and their items
func watchlistCommand(r *Runner) *cli.Command {
	list := func() cli.Argument { return &cli.Int64Arg{Name: "list"} }
	item := func() cli.Argument { return &cli.Int64Arg{Name: "item"} }

	return &cli.Command{
		Name:    "watchlist",
		Aliases: []string{"wl"},
		Usage:   "Manage watchlists",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List your watchlists",
				Flags:  outputFlags(),
				Action: r.WatchlistLists,
			},
			{
				Name:      "create",
				Usage:     "Create a watchlist",
				Arguments: []cli.Argument{&cli.StringArgs{Name: "name", Min: 1, Max: -1}},
				Action:    r.WatchlistCreate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a watchlist",
				Arguments: []cli.Argument{list()},
				Action:    r.WatchlistDelete,
			},
			{
				Name:      "show",
				Usage:     "Show a watchlist's items",
				Arguments: []cli.Argument{list()},
				Flags:     outputFlags(),
				Action:    r.WatchlistShow,
			},
			{
				Name:      "add",
				Usage:     "Add a title",
				Arguments: []cli.Argument{list(), &cli.Int64Arg{Name: "movie"}},
				Flags: withFlags(outputFlags(), []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Title shown until the server confirms"},
					&cli.StringFlag{Name: "poster", Usage: "Poster path shown until the server confirms"},
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Media type (movie, tv)", Value: "movie"},
				}),
				Action: r.WatchlistAdd,
			},
			{
				Name:      "status",
				Usage:     "Set an item's status (planned, watching, watched)",
				Arguments: []cli.Argument{list(), item(), &cli.StringArg{Name: "status"}},
				Flags:     outputFlags(),
				Action:    r.WatchlistStatus,
			},
			{
				Name:      "remove",
				Usage:     "Remove an item",
				Arguments: []cli.Argument{list(), item()},
				Flags:     outputFlags(),
				Action:    r.WatchlistRemove,
			},
			{
				Name:      "move",
				Usage:     "Move an item to a position, 1 being the top",
				Arguments: []cli.Argument{list(), item(), &cli.IntArg{Name: "position"}},
				Flags:     outputFlags(),
				Action:    r.WatchlistMove,
			},
		},
	}
}

// roomCommand handles watch-party rooms and their voted queues
func roomCommand(r *Runner) *cli.Command {
	room := func() cli.Argument { return &cli.Int64Arg{Name: "room"} }
	entry := func() cli.Argument { return &cli.Int64Arg{Name: "entry"} }

	return &cli.Command{
		Name:  "room",
		Usage: "Pick something to watch together",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List your rooms",
				Flags:  outputFlags(),
				Action: r.RoomList,
			},
			{
				Name:      "create",
				Usage:     "Create a room",
				Arguments: []cli.Argument{&cli.StringArgs{Name: "name", Min: 1, Max: -1}},
				Action:    r.RoomCreate,
			},
			{
				Name:      "join",
				Usage:     "Join a room with an invite code",
				Arguments: []cli.Argument{&cli.StringArg{Name: "code"}},
				Action:    r.RoomJoin,
			},
			{
				Name:      "show",
				Usage:     "Show a room's members and queue",
				Arguments: []cli.Argument{room()},
				Flags:     outputFlags(),
				Action:    r.RoomShow,
			},
			{
				Name:      "add",
				Usage:     "Propose a title",
				Arguments: []cli.Argument{room(), &cli.Int64Arg{Name: "movie"}},
				Flags: withFlags(outputFlags(), []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Title shown until the server confirms"},
					&cli.StringFlag{Name: "poster", Usage: "Poster path shown until the server confirms"},
				}),
				Action: r.RoomAdd,
			},
			{
				Name:      "vote",
				Usage:     "Vote on a queued title (up, down or clear)",
				Arguments: []cli.Argument{room(), entry(), &cli.StringArg{Name: "vote"}},
				Flags:     outputFlags(),
				Action:    r.RoomVote,
			},
			{
				Name:      "remove",
				Usage:     "Remove a queued title",
				Arguments: []cli.Argument{room(), entry()},
				Flags:     outputFlags(),
				Action:    r.RoomRemove,
			},
		},
	}
}
