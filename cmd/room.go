package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/reelx/internal/formatter"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/services"
	"github.com/desertthunder/reelx/internal/shared"
	"github.com/desertthunder/reelx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// parseVote accepts up, down, clear or a signed number.
func parseVote(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "+", "+1", "1":
		return 1, nil
	case "down", "-", "-1":
		return -1, nil
	case "clear", "none", "0":
		return 0, nil
	}
	return 0, fmt.Errorf("%w: vote %q (want up, down or clear)", shared.ErrInvalidArgument, s)
}

func roomsText(format formatter.Format, rooms []models.Room) ([]byte, error) {
	switch format {
	case formatter.FormatJSON:
		return shared.MarshalJSON(rooms, true)
	case formatter.FormatText:
	default:
		return nil, fmt.Errorf("%w: rooms can only be listed as text or json", shared.ErrInvalidArgument)
	}

	var buf bytes.Buffer
	if len(rooms) == 0 {
		buf.WriteString("No rooms yet. Create one with 'reelx room create' or join with a code.\n")
	}
	for _, room := range rooms {
		fmt.Fprintf(&buf, "%s [%s]  #%d\n", room.Name, room.Code, room.ID)
	}
	return buf.Bytes(), nil
}

// RoomList shows the rooms the current user belongs to.
func (r *Runner) RoomList(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}

	rooms, err := c.rooms.Rooms(ctx)
	if err != nil {
		return failure("failed to load rooms", err)
	}
	return r.render(cmd, func(f formatter.Format) ([]byte, error) {
		return roomsText(f, rooms)
	})
}

// RoomCreate opens a new room and prints its invite code.
func (r *Runner) RoomCreate(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}

	name := strings.Join(cmd.StringArgs("name"), " ")
	if err := requireArg("name", name); err != nil {
		return err
	}

	room, err := c.rooms.Create(ctx, name)
	if err != nil {
		return failure("failed to create room", err)
	}
	r.writePlain("✓ Created room %q  #%d\n", room.Name, room.ID)
	return r.writePlain("Invite code: %s\n", room.Code)
}

// RoomJoin joins a room by invite code.
func (r *Runner) RoomJoin(ctx context.Context, cmd *cli.Command) error {
	c, err := r.connect()
	if err != nil {
		return err
	}

	room, err := c.rooms.Join(ctx, cmd.StringArg("code"))
	if err != nil {
		return failure("failed to join room", err)
	}
	return r.writePlain("✓ Joined %q  #%d\n", room.Name, room.ID)
}

// openRoom loads a room session for the "room" argument.
func (r *Runner) openRoom(ctx context.Context, cmd *cli.Command, progress chan<- tasks.ProgressUpdate) (*tasks.RoomSession, error) {
	c, err := r.connect()
	if err != nil {
		return nil, err
	}

	session := tasks.NewRoomSession(c.rooms, cmd.Int64Arg("room"), tasks.RoomOpts{
		Progress: progress,
		Logger:   r.logger,
	})
	if err := session.Load(ctx); err != nil {
		session.Detach()
		return nil, failure("failed to load room", err)
	}
	return session, nil
}

func (r *Runner) showRoom(cmd *cli.Command, session *tasks.RoomSession) error {
	room, members, ranked := session.Room(), session.Members(), session.Ranked()
	return r.render(cmd, func(f formatter.Format) ([]byte, error) {
		return formatter.Room(f, room, members, ranked)
	})
}

// RoomShow prints a room's members and its queue by score.
func (r *Runner) RoomShow(ctx context.Context, cmd *cli.Command) error {
	progress, stop := r.progress()
	defer stop()

	session, err := r.openRoom(ctx, cmd, progress)
	if err != nil {
		return err
	}
	defer session.Detach()

	return r.showRoom(cmd, session)
}

// RoomAdd proposes a title to a room's queue.
func (r *Runner) RoomAdd(ctx context.Context, cmd *cli.Command) error {
	progress, stop := r.progress()
	defer stop()

	session, err := r.openRoom(ctx, cmd, progress)
	if err != nil {
		return err
	}
	defer session.Detach()

	pm, err := session.Add(ctx, services.NewRoomMovie{
		MovieID:    cmd.Int64Arg("movie"),
		Title:      cmd.String("title"),
		PosterPath: cmd.String("poster"),
	})
	if err := settle(ctx, "failed to propose title", pm, err); err != nil {
		return err
	}

	r.writePlain("✓ Proposed #%d\n", cmd.Int64Arg("movie"))
	return r.showRoom(cmd, session)
}

// RoomVote votes on a queued entry.
func (r *Runner) RoomVote(ctx context.Context, cmd *cli.Command) error {
	value, err := parseVote(cmd.StringArg("vote"))
	if err != nil {
		return err
	}

	progress, stop := r.progress()
	defer stop()

	session, err := r.openRoom(ctx, cmd, progress)
	if err != nil {
		return err
	}
	defer session.Detach()

	entry := cmd.Int64Arg("entry")
	pm, err := session.Vote(ctx, entry, value)
	if err := settle(ctx, "failed to vote", pm, err); err != nil {
		return err
	}

	r.writePlain("✓ Voted %+d on #%d\n", value, entry)
	return r.showRoom(cmd, session)
}

// RoomRemove drops an entry from a room's queue.
func (r *Runner) RoomRemove(ctx context.Context, cmd *cli.Command) error {
	progress, stop := r.progress()
	defer stop()

	session, err := r.openRoom(ctx, cmd, progress)
	if err != nil {
		return err
	}
	defer session.Detach()

	pm, err := session.Remove(ctx, cmd.Int64Arg("entry"))
	if err := settle(ctx, "failed to remove entry", pm, err); err != nil {
		return err
	}

	r.writePlain("✓ Removed #%d\n", cmd.Int64Arg("entry"))
	return r.showRoom(cmd, session)
}
