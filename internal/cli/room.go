package cli

import (
	"github.com/spf13/cobra"
)

func newHostCmd() *cobra.Command {
	var deckRef string
	var name string

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Create a room and host an interactive session",
		Long: `Create a new room as host and stay connected, streaming room events.

Other players join with the printed room code. Type 'help' inside the
session for the available commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(wsRequest{
				Op:      "createRoom",
				DeckRef: deckRef,
				Name:    name,
			})
		},
	}

	cmd.Flags().StringVar(&deckRef, "deck", "", "Deck reference to play (required)")
	cmd.Flags().StringVar(&name, "name", "", "Your display name (required)")
	_ = cmd.MarkFlagRequired("deck")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newJoinCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "join <code>",
		Short: "Join a room with an interactive session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(wsRequest{
				Op:       "joinRoom",
				RoomCode: args[0],
				Name:     name,
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Your display name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
