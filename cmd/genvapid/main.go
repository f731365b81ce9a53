// Command genvapid prints a fresh VAPID key pair for web push.
package main

import (
	"fmt"
	"os"

	"openfashion/logger"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
)

func main() {
	if err := logger.Init(true, "info"); err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		logger.Get().Fatal("Failed to generate VAPID keys", zap.Error(err))
	}

	logger.Get().Info("Generated VAPID key pair; add these lines to your .env")
	fmt.Printf("VAPID_PUBLIC_KEY=%s\n", publicKey)
	fmt.Printf("VAPID_PRIVATE_KEY=%s\n", privateKey)
	fmt.Println("VAPID_SUBJECT=mailto:admin@openfashion.app")
}
