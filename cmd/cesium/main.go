package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/OnlyF0uR/cesium/core"
	"github.com/OnlyF0uR/cesium/pkg/config"
)

const version = "0.1.0"

const banner = `
   ____ _____ ____ ___ _   _ __  __
  / ___| ____/ ___|_ _| | | |  \/  |
 | |   |  _| \___ \| || | | | |\/| |
 | |___| |___ ___) | || |_| | |  | |
  \____|_____|____/___|\___/|_|  |_|
`

func main() {
	rootCmd := &cobra.Command{Use: "cesium", Short: "cesium validator node"}
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(addressCmd())
	rootCmd.AddCommand(sendCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *log.Logger {
	lg := log.New()
	if level, err := log.ParseLevel(cfg.Logging.Level); err == nil {
		lg.SetLevel(level)
	}
	if cfg.Logging.JSON {
		lg.SetFormatter(&log.JSONFormatter{})
	}
	return lg
}

func keyDir(cfg *config.Config) (string, error) {
	if cfg.Node.KeyDir != "" {
		return cfg.Node.KeyDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".cesium"), nil
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "start the validator node",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			lg := newLogger(cfg)

			dir, err := keyDir(cfg)
			if err != nil {
				return err
			}
			account, err := core.LoadOrCreateValidatorKey(dir, lg)
			if err != nil {
				return err
			}

			store, err := core.OpenStore(cfg.Storage.DBPath, lg)
			if err != nil {
				return err
			}
			defer store.Close()
			core.SetCurrentStore(store)

			mempool := core.NewMempool(account, store, &core.LogGossiper{Logger: lg}, lg)
			mempool.SetIntervalCount(cfg.Mempool.PackIntervalCount)
			mempool.SetMinReferences(cfg.Mempool.PackMinRefs)
			mempool.SetProportion(cfg.Mempool.PackProportion)

			runtime := core.NewRuntime(store, lg)
			engine := core.NewEngine(store, runtime, lg)

			fmt.Print(banner)
			fmt.Printf("\nAddress: %s\n\n", account.DA().String())

			rpc := core.NewRPCServer(mempool, store, version, lg)
			rpc.AttachEngine(engine)
			return rpc.Serve(cfg.Node.ListenAddr)
		},
	}
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "create a keypair and print its readable form",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := core.NewSignerPair()
			if err != nil {
				return err
			}
			pk, sk, err := kp.ToReadable()
			if err != nil {
				return err
			}
			fmt.Printf("public:  %s\nsecret:  %s\naddress: %s\n", pk, sk, kp.DA().String())
			return nil
		},
	}
}

func addressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address [public-key]",
		Short: "derive the display address of a base-58 public key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := core.VerifierPairFromReadable(args[0])
			if err != nil {
				return err
			}
			fmt.Println(kp.DA().String())
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	var node string
	cmd := &cobra.Command{
		Use:   "send [hex-transaction]",
		Short: "submit a hex-encoded signed transaction to a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := hex.DecodeString(strings.TrimSpace(args[0])); err != nil {
				return fmt.Errorf("transaction must be hex encoded: %w", err)
			}
			resp, err := http.Post(node+"/transaction", "text/plain", strings.NewReader(args[0]))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			fmt.Printf("%s: %s\n", resp.Status, strings.TrimSpace(string(body)))
			return nil
		},
	}
	cmd.Flags().StringVar(&node, "node", "http://127.0.0.1:8799", "node base url")
	return cmd
}
