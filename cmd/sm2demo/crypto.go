package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _, eng, err := setup(cmd)
			if err != nil {
				return err
			}
			kp, err := eng.GenerateKeyPair()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(kp)
		},
	}
}

func pubkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pubkey <private-key>",
		Short: "Derive the public key of a private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, eng, err := setup(cmd)
			if err != nil {
				return err
			}
			pub, err := eng.PublicKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pub)
			return nil
		},
	}
}

func encryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <public-key> <message>",
		Short: "Encrypt a text message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, eng, err := setup(cmd)
			if err != nil {
				return err
			}
			ct, err := eng.Encrypt([]byte(args[1]), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ct)
			return nil
		},
	}
}

func decryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <private-key> <ciphertext>",
		Short: "Decrypt a hex ciphertext",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, eng, err := setup(cmd)
			if err != nil {
				return err
			}
			text, err := eng.Decrypt(args[1], args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func signCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sign <private-key> <user-id> <message>",
		Short: "Sign a message",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, eng, err := setup(cmd)
			if err != nil {
				return err
			}
			sig, err := eng.Sign(args[1], []byte(args[2]), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sig)
			return nil
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <public-key> <user-id> <message> <signature>",
		Short: "Verify a signature; exits non-zero when it is invalid",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, eng, err := setup(cmd)
			if err != nil {
				return err
			}
			if !eng.Verify(args[1], args[3], []byte(args[2]), args[0]) {
				return fmt.Errorf("signature is not valid")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
}
