package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hupe1980/lsmvec"
	"github.com/hupe1980/lsmvec/distance"
	"github.com/hupe1980/lsmvec/model"
)

func parseVector(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	vec := make([]float64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		val, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vector format: %w", err)
		}
		vec = append(vec, val)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	return vec, nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(s *lsmvec.Store) error {
				st, err := s.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Directory:      %s\n", a.cfg.Dir)
				fmt.Fprintf(out, "Records:        %d\n", st.Count)
				fmt.Fprintf(out, "Dimension:      %d\n", st.Dimension)
				fmt.Fprintf(out, "Segments:       %d (%d records)\n", st.Segments, st.SegmentRecords)
				fmt.Fprintf(out, "MemTable:       %d\n", st.MemtableSize)
				fmt.Fprintf(out, "Tombstones:     %d\n", st.Tombstones)
				fmt.Fprintf(out, "WAL size:       %d bytes\n", st.WALSize)
				fmt.Fprintf(out, "Index nodes:    %d (stale %.2f, depth %d)\n", st.IndexNodes, st.IndexStaleRatio, st.IndexDepth)
				return nil
			})
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a record by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *lsmvec.Store) error {
				rec, ok, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("record %q not found", args[0])
				}
				return printJSON(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func (a *app) searchCmd() *cobra.Command {
	var (
		k      int
		metric string
	)
	cmd := &cobra.Command{
		Use:   "search <vector>",
		Short: "Find the k nearest records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := distance.ParseMetric(metric)
			if err != nil {
				return err
			}
			query, err := parseVector(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s *lsmvec.Store) error {
				if m == distance.MetricCosine {
					res, err := s.SearchSimilar(cmd.Context(), query, k)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), res)
				}
				res, err := s.SearchNearby(cmd.Context(), query, k)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().IntVar(&k, "k", lsmvec.DefaultK, "number of results")
	cmd.Flags().StringVarP(&metric, "metric", "m", "cosine", "metric (cosine, euclidean)")
	return cmd
}

func (a *app) addCmd() *cobra.Command {
	var (
		id   string
		meta string
	)
	cmd := &cobra.Command{
		Use:   "add <vector>",
		Short: "Add or replace a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vec, err := parseVector(args[0])
			if err != nil {
				return err
			}
			var opts []lsmvec.AddOption
			if cmd.Flags().Changed("id") {
				opts = append(opts, lsmvec.WithID(id))
			}
			if meta != "" {
				md := model.Metadata{}
				if err := json.Unmarshal([]byte(meta), &md); err != nil {
					return fmt.Errorf("invalid metadata JSON: %w", err)
				}
				opts = append(opts, lsmvec.WithMetadata(md))
			}
			return a.withStore(cmd.Context(), func(s *lsmvec.Store) error {
				newID, err := s.Add(cmd.Context(), vec, opts...)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), newID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "record id (generated when omitted)")
	cmd.Flags().StringVar(&meta, "meta", "", "metadata as a JSON object")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete records by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s *lsmvec.Store) error {
				n, err := s.DeleteBatch(cmd.Context(), args)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d of %d\n", n, len(args))
				return nil
			})
		},
	}
}

func (a *app) compactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Merge all segments into one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(s *lsmvec.Store) error {
				return s.Compact(cmd.Context())
			})
		},
	}
}

func (a *app) flushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Write buffered records to a segment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(s *lsmvec.Store) error {
				return s.Save(cmd.Context())
			})
		},
	}
}
