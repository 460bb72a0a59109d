package config

import (
	"flag"
	"os"
	"time"

	"github.com/mfuentesc/siidte/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-n string   SII environment: "certificacion" or "produccion"
//	-w string   SII base URL override (testing/proxies)
//	-t int      SII HTTP timeout, seconds
//	-l int      SII token validity, minutes
//	-x string   signature algorithm: "rsa-sha1" or "rsa-sha256"
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-o bool     enable S3 archiving of signed documents
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:],
		[]string{"-a", "-d", "-s", "-n", "-w", "-t", "-l", "-x", "-u", "-p", "-b", "-g", "-e", "-o"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.SIIEnvironment, "n", config.SIIEnvironment, "SII environment")
	fs.StringVar(&config.SIIBaseURL, "w", config.SIIBaseURL, "SII base URL override")

	siiTimeout := fs.Int("t", int(config.SIITimeout.Seconds()), "SII HTTP timeout (in seconds)")
	siiTokenTTL := fs.Int("l", int(config.SIITokenTTL.Minutes()), "SII token validity (in minutes)")

	fs.StringVar(&config.SignatureAlg, "x", config.SignatureAlg, "signature algorithm")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.BoolVar(&config.S3ArchiveEnabled, "o", config.S3ArchiveEnabled, "archive signed documents to S3")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SIITimeout = time.Duration(*siiTimeout) * time.Second
	config.SIITokenTTL = time.Duration(*siiTokenTTL) * time.Minute
}
