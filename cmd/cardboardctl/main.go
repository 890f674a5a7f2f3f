// Command cardboardctl is the control CLI for a running cardboard-node:
// it creates boxes, requests downloads, and reports progress over the
// node's control socket.
//
// Hash presentation: the specification treats human-readable hash
// encoding as an external, opaque codec (an error-correcting scheme in
// the original). No such codec appears anywhere in the retrieved
// example pack, so this CLI falls back to plain hex (encoding/hex) for
// displaying and parsing box hashes — a stand-in, not a replacement,
// for that external concern.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brackishlabs/cardboard/box"
	"github.com/brackishlabs/cardboard/rpc"
)

func main() {
	sockPath := flag.String("socket", rpc.SocketPath, "control socket path")
	flag.Parse()
	args := flag.Args()

	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "create":
		err = createBox(*sockPath, args[1:])
	case "download":
		err = downloadBox(*sockPath, args[1:])
	case "details":
		err = getBoxState(*sockPath, args[1:])
	case "status":
		err = getAllBoxes(*sockPath, args[1:])
	case "list-peers":
		err = getAllPeers(*sockPath)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "cardboardctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: cardboardctl [-socket path] <create|download|details|status|list-peers> ...")
}

func createBox(sockPath string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: create <name> <path>")
	}
	path, err := filepath.Abs(args[1])
	if err != nil {
		return err
	}

	resp, err := rpc.Call(sockPath, rpc.CreateBox{Name: args[0], Path: path})
	if err != nil {
		return err
	}
	created, ok := resp.(rpc.BoxCreated)
	if !ok {
		return fmt.Errorf("couldn't create box")
	}
	fmt.Printf("created box! here's its hash: %s\n", hex.EncodeToString(created.Hash[:]))
	return nil
}

func downloadBox(sockPath string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: download <hash> <path>")
	}
	hash, err := parseHash(args[0])
	if err != nil {
		return err
	}
	path, err := filepath.Abs(args[1])
	if err != nil {
		return err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}

	resp, err := rpc.Call(sockPath, rpc.DownloadBox{Hash: hash, Path: path})
	if err != nil {
		return err
	}
	if _, ok := resp.(rpc.Ok); !ok {
		return fmt.Errorf("couldn't add box")
	}
	fmt.Println("downloading box!")
	return nil
}

func getBoxState(sockPath string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: details <hash>")
	}
	hash, err := parseHash(args[0])
	if err != nil {
		return err
	}

	resp, err := rpc.Call(sockPath, rpc.GetBoxState{Hash: hash})
	if err != nil {
		return err
	}
	switch r := resp.(type) {
	case rpc.Box:
		displayBoxVerbose(r.State)
	case rpc.NotFound:
		fmt.Println("box not found - if you recently added it, we may not have metadata for it yet!")
	default:
		return fmt.Errorf("unexpected response")
	}
	return nil
}

func getAllBoxes(sockPath string, args []string) error {
	verbose := flag.NewFlagSet("status", flag.ExitOnError)
	verboseFlag := verbose.Bool("v", false, "display per-file details")
	verbose.Parse(args)

	resp, err := rpc.Call(sockPath, rpc.GetAllBoxes{})
	if err != nil {
		return err
	}
	boxes, ok := resp.(rpc.Boxes)
	if !ok {
		return fmt.Errorf("unexpected response")
	}
	for _, s := range boxes.States {
		if *verboseFlag {
			displayBoxVerbose(s)
			fmt.Println()
		} else {
			displayBoxMin(s)
		}
	}
	return nil
}

func getAllPeers(sockPath string) error {
	resp, err := rpc.Call(sockPath, rpc.GetAllPeers{})
	if err != nil {
		return err
	}
	peers, ok := resp.(rpc.Peers)
	if !ok {
		return fmt.Errorf("unexpected response")
	}
	fmt.Println("current peers:")
	for _, p := range peers.Addrs {
		fmt.Println(">", p)
	}
	return nil
}

func parseHash(s string) (box.BoxHash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return box.BoxHash{}, fmt.Errorf("weird! i couldn't decode the hash you gave me: %w", err)
	}
	var h box.BoxHash
	if len(raw) != len(h) {
		return h, fmt.Errorf("weird! i couldn't decode the hash you gave me: expected %d bytes, got %d", len(h), len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

func displayBoxVerbose(state rpc.BoxState) {
	fmt.Printf("cat box %s\n(hash %s)\n", state.Name, hex.EncodeToString(state.Hash[:]))
	for _, f := range state.Files {
		pct := 0
		if f.TotalPieces > 0 {
			pct = f.PiecesDownloaded * 100 / f.TotalPieces
		}
		fmt.Printf("> %s - %d%% done (%d/%d pieces)\n", f.Path, pct, f.PiecesDownloaded, f.TotalPieces)
	}
}

func displayBoxMin(state rpc.BoxState) {
	var total, done int
	for _, f := range state.Files {
		total += f.TotalPieces
		done += f.PiecesDownloaded
	}
	pct := 0
	if total > 0 {
		pct = done * 100 / total
	}
	fmt.Printf("cat box %s\n(hash %s)\n> %d%% done (%d/%d pieces)\n", state.Name, hex.EncodeToString(state.Hash[:]), pct, done, total)
}
