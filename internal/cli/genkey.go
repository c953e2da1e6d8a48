package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tutu-network/wgsim/internal/security"
)

func init() {
	rootCmd.AddCommand(genkeyCmd)
}

var genkeyCmd = &cobra.Command{
	Use:   "genkey [PRIVATE_KEY]",
	Short: "Generate a node key pair, or derive the public key of PRIVATE_KEY",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGenkey,
}

func runGenkey(cmd *cobra.Command, args []string) error {
	var (
		kp  security.Keypair
		err error
	)
	if len(args) == 1 {
		kp, err = security.ParsePrivateKey(args[0])
	} else {
		kp, err = security.GenerateKeypair()
	}
	if err != nil {
		return err
	}

	fmt.Printf("private_key: %s\n", kp.PrivateKeyBase64())
	fmt.Printf("public_key:  %s\n", kp.PublicKeyBase64())
	return nil
}
