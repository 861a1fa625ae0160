package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/kalashnikxvxiii-collab/StegVault/internal/gallery"
	"github.com/kalashnikxvxiii-collab/StegVault/internal/models"
)

// cmdGallery dispatches the gallery subcommands.
func (a *app) cmdGallery(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("gallery requires a subcommand: init, add, list, search, remove, relabel, or verify")
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "init":
		return a.galleryInit(ctx, rest)
	case "add":
		return a.galleryAdd(ctx, rest)
	case "list":
		return a.galleryList(ctx, rest)
	case "search":
		return a.gallerySearch(ctx, rest)
	case "remove":
		return a.galleryRemove(ctx, rest)
	case "relabel":
		return a.galleryRelabel(ctx, rest)
	case "verify":
		return a.galleryVerify(ctx, rest)
	default:
		return fmt.Errorf("unknown gallery subcommand: %s", sub)
	}
}

// galleryInit creates the gallery database and the config file it lives
// next to.
func (a *app) galleryInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gallery init", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.ensureConfigFile(); err != nil {
		return err
	}
	g, err := a.openGallery()
	if err != nil {
		return err
	}
	defer g.Close()

	fmt.Fprintf(a.stdout, "Gallery ready at %s\n", a.cfg.GalleryDBPath)
	return nil
}

// galleryAdd registers an existing vault image.
func (a *app) galleryAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gallery add", flag.ExitOnError)
	path := fs.String("path", "", "Image file to register")
	label := fs.String("label", "", "Human-friendly label")
	tags := fs.String("tags", "", "Comma-separated tags")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("gallery add requires -path")
	}

	g, err := a.openGallery()
	if err != nil {
		return err
	}
	defer g.Close()

	img, err := g.Add(ctx, *path, *label, splitTags(*tags))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Registered %s as %s\n", img.Path, img.ID)
	return nil
}

// galleryList prints all registered vault images.
func (a *app) galleryList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gallery list", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	g, err := a.openGallery()
	if err != nil {
		return err
	}
	defer g.Close()

	images, err := g.List(ctx)
	if err != nil {
		return err
	}
	return a.printImages(images)
}

// gallerySearch filters registered images by label, path, or tag.
func (a *app) gallerySearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gallery search", flag.ExitOnError)
	query := fs.String("q", "", "Substring to match against labels, paths, and tags")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *query == "" && fs.NArg() > 0 {
		*query = fs.Arg(0)
	}

	g, err := a.openGallery()
	if err != nil {
		return err
	}
	defer g.Close()

	images, err := g.Search(ctx, *query)
	if err != nil {
		return err
	}
	return a.printImages(images)
}

// galleryRemove forgets a registered image. The image file itself is left
// alone.
func (a *app) galleryRemove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gallery remove", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: gallery remove <id|path|label>")
	}

	g, err := a.openGallery()
	if err != nil {
		return err
	}
	defer g.Close()

	if err := g.Remove(ctx, fs.Arg(0)); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Removed %s from the gallery\n", fs.Arg(0))
	return nil
}

// galleryRelabel changes an image's label.
func (a *app) galleryRelabel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gallery relabel", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: gallery relabel <id|path|label> <new-label>")
	}

	g, err := a.openGallery()
	if err != nil {
		return err
	}
	defer g.Close()

	if err := g.Relabel(ctx, fs.Arg(0), fs.Arg(1)); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Relabeled %s to %q\n", fs.Arg(0), fs.Arg(1))
	return nil
}

// galleryVerify re-hashes one image, or every registered image when no
// reference is given. Any missing or modified image makes the command fail
// so scripts can notice.
func (a *app) galleryVerify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gallery verify", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	g, err := a.openGallery()
	if err != nil {
		return err
	}
	defer g.Close()

	var images []models.VaultImage
	if fs.NArg() > 0 {
		img, err := g.Resolve(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		images = []models.VaultImage{*img}
	} else {
		images, err = g.List(ctx)
		if err != nil {
			return err
		}
	}
	if len(images) == 0 {
		fmt.Fprintln(a.stdout, "No images registered")
		return nil
	}

	bad := 0
	w := tabwriter.NewWriter(a.stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tLABEL\tPATH")
	for _, img := range images {
		status, err := g.Verify(ctx, img.ID)
		if err != nil {
			return err
		}
		if status != gallery.VerifyOK {
			bad++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", status, img.Label, img.Path)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if bad > 0 {
		return fmt.Errorf("verification failed for %d image(s)", bad)
	}
	return nil
}

func (a *app) printImages(images []models.VaultImage) error {
	if len(images) == 0 {
		fmt.Fprintln(a.stdout, "No images")
		return nil
	}
	w := tabwriter.NewWriter(a.stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tFORMAT\tSIZE\tCAPACITY\tTAGS\tPATH")
	for _, img := range images {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\t%d\t%s\t%s\n",
			img.ID, img.Label, img.Format, img.Width, img.Height, img.Capacity,
			strings.Join(img.Tags, ","), img.Path)
	}
	return w.Flush()
}
