package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/izposoja/internal/app"
	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/inventory"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/syncer"
)

var (
	department string

	borrowQuantity int
	borrowName     string
	borrowContact  string
	borrowFor      time.Duration
	photoPaths     []string

	returnItem   string
	returnForced bool
)

const dateFormat = "2006-01-02 15:04"

func table() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the local cache from the service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if err := a.SyncAll(ctx, department); err != nil {
				return err
			}
			fmt.Println("Synchronized")
			return nil
		})
	},
}

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List equipment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			items, err := syncer.Await(ctx, a.Sync.Equipment().Sync(ctx, department))
			if err != nil {
				a.Sync.Logger().Warn("showing cached equipment", "error", err)
				if items, err = a.Store.ListItems(ctx, department); err != nil {
					return err
				}
			}
			printItems(items)
			return nil
		})
	},
}

func printItems(items []model.EquipmentItem) {
	w := table()
	fmt.Fprintln(w, "ID\tNAME\tAVAILABLE\tTOTAL\tAPPROVAL")
	for _, it := range items {
		approval := ""
		if it.RequiresApproval {
			approval = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", it.ID, it.Name, it.AvailableQuantity, it.TotalQuantity, approval)
	}
	w.Flush()
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List borrow history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			entries, err := syncer.Await(ctx, a.Sync.Borrows().SyncHistory(ctx, department))
			if err != nil {
				return err
			}
			printHistory(entries)
			return nil
		})
	},
}

func printHistory(entries []model.BorrowHistoryEntry) {
	w := table()
	fmt.Fprintln(w, "ID\tITEM\tQTY\tBORROWER\tDUE\tSTATUS")
	for _, h := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			h.ID, h.ItemName, h.Quantity, h.Borrower.Name, h.ExpectedReturnDate.Local().Format(dateFormat), h.Status)
	}
	w.Flush()
}

// storePhotos normalizes and stores the given photo files, returning their
// references.
func storePhotos(ctx context.Context, a *app.App, paths []string) ([]string, error) {
	var refs []string
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening photo: %w", err)
		}
		ref, err := a.Store.PutImage(ctx, f, time.Now())
		f.Close()
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

var borrowCmd = &cobra.Command{
	Use:   "borrow <item-id>",
	Short: "Borrow an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			photos, err := storePhotos(ctx, a, photoPaths)
			if err != nil {
				return err
			}
			out, err := a.Sync.Borrows().Borrow(ctx, inventory.BorrowInput{
				ItemID:             args[0],
				Quantity:           borrowQuantity,
				Borrower:           model.Contact{Name: borrowName, Contact: borrowContact},
				ExpectedReturnDate: time.Now().Add(borrowFor),
				Photos:             photos,
			})
			if err != nil {
				return err
			}
			switch {
			case out.Request != nil:
				fmt.Printf("Borrow request %s is waiting for approval\n", out.Request.ID)
			case out.History != nil:
				fmt.Printf("Borrowed, record %s, due %s\n", out.History.ID, out.History.ExpectedReturnDate.Local().Format(dateFormat))
			}
			return nil
		})
	},
}

var returnCmd = &cobra.Command{
	Use:   "return <history-id>",
	Short: "Return a borrowed item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			photos, err := storePhotos(ctx, a, photoPaths)
			if err != nil {
				return err
			}
			out, err := a.Sync.Borrows().Return(ctx, inventory.ReturnInput{
				ItemID:    returnItem,
				HistoryID: args[0],
				Forced:    returnForced,
				Photos:    photos,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Returned, status %s\n", out.History.Status)
			return nil
		})
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List borrow requests waiting for approval",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if _, err := syncer.Await(ctx, a.Sync.Borrows().SyncRequests(ctx, department)); err != nil {
				a.Sync.Logger().Warn("showing cached requests", "error", err)
			}
			pending, err := a.Approvals.Pending(ctx, department)
			if err != nil {
				return err
			}
			printRequests(pending)
			return nil
		})
	},
}

func printRequests(requests []model.BorrowRequest) {
	w := table()
	fmt.Fprintln(w, "ID\tITEM\tQTY\tBORROWER\tREQUESTED\tSTATUS")
	for _, r := range requests {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID, r.ItemName, r.Quantity, r.Borrower.Name, r.RequestedAt.Local().Format(dateFormat), r.Status)
	}
	w.Flush()
}

func reviewCmd(verb string, approve bool) *cobra.Command {
	return &cobra.Command{
		Use:       verb + " <borrow|registration> <id>",
		Short:     "Review a pending request",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"borrow", "registration"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				kind, id := args[0], args[1]
				var err error
				switch {
				case kind == "borrow" && approve:
					_, err = a.Approvals.ApproveBorrow(ctx, id)
				case kind == "borrow":
					_, err = a.Approvals.RejectBorrow(ctx, id)
				case kind == "registration" && approve:
					var u model.User
					if u, err = a.Approvals.ApproveRegistration(ctx, id); err == nil {
						fmt.Printf("Account %s created for %s\n", u.ID, u.Contact)
					}
				case kind == "registration":
					err = a.Approvals.RejectRegistration(ctx, id)
				default:
					return errs.Validation("unknown request kind %q", kind)
				}
				if err != nil {
					return err
				}
				fmt.Printf("%s %s: done\n", kind, id)
				return nil
			})
		},
	}
}

func init() {
	for _, c := range []*cobra.Command{syncCmd, itemsCmd, historyCmd, pendingCmd} {
		c.Flags().StringVarP(&department, "department", "d", "", "department ID (default: all)")
	}

	borrowCmd.Flags().IntVarP(&borrowQuantity, "quantity", "n", 1, "quantity")
	borrowCmd.Flags().StringVar(&borrowName, "borrower", "", "borrower name")
	borrowCmd.Flags().StringVar(&borrowContact, "contact", "", "borrower contact")
	borrowCmd.Flags().DurationVar(&borrowFor, "for", 7*24*time.Hour, "borrow duration")
	_ = borrowCmd.MarkFlagRequired("borrower")

	returnCmd.Flags().StringVar(&returnItem, "item", "", "item ID to cross-check")
	returnCmd.Flags().BoolVar(&returnForced, "forced", false, "force the return")

	for _, c := range []*cobra.Command{borrowCmd, returnCmd} {
		c.Flags().StringSliceVar(&photoPaths, "photo", nil, "evidence photo file (repeatable)")
	}

	rootCmd.AddCommand(syncCmd, itemsCmd, historyCmd, borrowCmd, returnCmd, pendingCmd,
		reviewCmd("approve", true), reviewCmd("reject", false))
}
