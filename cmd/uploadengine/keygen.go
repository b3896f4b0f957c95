package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/urfave/cli"

	"github.com/streamforge/uploadengine/internal/jwkutil"
)

// KeygenCommand generates a JWK key pair used to sign and verify bearer
// tokens checked by the JWT auth validator.
var KeygenCommand = cli.Command{
	Name:  "keygen",
	Usage: "generate a new JWK key pair for signing upload auth tokens",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "alg",
			Usage: fmt.Sprintf("signing algorithm to use. Defaults to EdDSA. Valid: %v", jwkutil.ValidSigningAlgorithms),
		},
		cli.StringFlag{
			Name:  "key-id",
			Usage: "ID for the generated keys. Defaults to a randomly generated name",
		},
		cli.StringFlag{
			Name:  "private-jwks-file",
			Usage: "file to write the private JWKS to",
		},
		cli.StringFlag{
			Name:  "public-jwks-file",
			Usage: "file to write the public JWKS to",
		},
	},
	Action: func(c *cli.Context) error {
		alg := c.String("alg")
		if alg == "" {
			alg = "EdDSA"
		}
		sigAlg := jwa.SignatureAlgorithm(alg)
		if !slices.Contains(jwkutil.ValidSigningAlgorithms, sigAlg) {
			return fmt.Errorf("invalid signing algorithm %q, valid algorithms are %v", alg, jwkutil.ValidSigningAlgorithms)
		}

		keyID := c.String("key-id")
		if keyID == "" {
			keyID = petname.Generate(2, "-")
		}

		priv, pub, err := jwkutil.NewKeyPair(keyID, sigAlg)
		if err != nil {
			return fmt.Errorf("generating key pair: %w", err)
		}

		privFile := c.String("private-jwks-file")
		if privFile == "" {
			privFile = fmt.Sprintf("./%s-%s-private.json", alg, keyID)
		}
		pubFile := c.String("public-jwks-file")
		if pubFile == "" {
			pubFile = fmt.Sprintf("./%s-%s-public.json", alg, keyID)
		}

		if err := writeJWKS(privFile, priv); err != nil {
			return err
		}
		if err := writeJWKS(pubFile, pub); err != nil {
			return err
		}

		fmt.Fprintf(c.App.Writer, "wrote private key set to %s\n", privFile)
		fmt.Fprintf(c.App.Writer, "wrote public key set to %s\n", pubFile)
		return nil
	},
}

func writeJWKS(filename string, set any) error {
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("file %s already exists", filename)
	}
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshalling key set: %w", err)
	}
	return os.WriteFile(filename, data, 0o600)
}
