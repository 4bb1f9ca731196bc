package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/cobra"

	"plugintree/sdk/go/plugintree"
)

var (
	rootStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	enumStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	managerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	availableHint = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func (o *rootOptions) client() (*plugintree.Client, error) {
	return plugintree.NewClient(o.server, nil)
}

func newTreeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "以树形展示已加载的插件",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			plugins, err := client.ListPlugins(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTree(plugins))
			return nil
		},
	}
}

// renderTree 按 parent 关系还原插件树，同层按 ID 排序。父插件不在列表中的
// 插件（例如父插件已被单独移除）作为根节点展示。
func renderTree(plugins []plugintree.Plugin) string {
	listed := make(map[string]struct{}, len(plugins))
	for _, p := range plugins {
		listed[p.ID] = struct{}{}
	}
	children := make(map[string][]plugintree.Plugin)
	for _, p := range plugins {
		parent := p.Parent
		if _, ok := listed[parent]; !ok {
			parent = ""
		}
		children[parent] = append(children[parent], p)
	}
	for key := range children {
		sort.Slice(children[key], func(i, j int) bool { return children[key][i].ID < children[key][j].ID })
	}

	var build func(p plugintree.Plugin) *tree.Tree
	build = func(p plugintree.Plugin) *tree.Tree {
		node := tree.Root(label(p))
		for _, child := range children[p.ID] {
			node.Child(build(child))
		}
		return node
	}

	root := tree.Root(fmt.Sprintf("plugins (%d)", len(plugins))).
		RootStyle(rootStyle).
		EnumeratorStyle(enumStyle)
	for _, p := range children[""] {
		root.Child(build(p))
	}
	return root.String()
}

func label(p plugintree.Plugin) string {
	if p.Manager == "" {
		return p.Name
	}
	return p.Name + " " + managerStyle.Render("["+p.Manager+"]")
}

func newAvailableCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "列出可加载但尚未加载的插件",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			avail, err := client.Available(cmd.Context())
			if err != nil {
				return err
			}
			writeAvailable(cmd.OutOrStdout(), avail)
			return nil
		},
	}
}

func writeAvailable(w io.Writer, avail plugintree.Available) {
	if len(avail.Names) == 0 && len(avail.FullPaths) == 0 {
		fmt.Fprintln(w, availableHint.Render("所有插件均已加载"))
		return
	}
	for _, name := range avail.Names {
		fmt.Fprintln(w, name)
	}
	for _, path := range avail.FullPaths {
		fmt.Fprintln(w, strings.Join(path, ":"))
	}
}

func newOwnerCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "owner <module>",
		Short: "查询拥有指定模块的插件",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			p, err := client.Owner(cmd.Context(), args[0])
			if err != nil {
				if plugintree.IsNotFound(err) {
					fmt.Fprintf(cmd.OutOrStdout(), "没有插件拥有模块 %s\n", args[0])
					return nil
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ID, p.Module)
			return nil
		},
	}
}

func newLedgerCommand(opts *rootOptions) *cobra.Command {
	var query plugintree.LedgerQuery
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "查看最近的注册与移除流水",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			entries, err := client.Ledger(cmd.Context(), query)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%-10s\t%s\t%s\n",
					e.At.Format("2006-01-02T15:04:05Z07:00"), e.Action, e.PluginID, e.Module)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&query.Limit, "limit", 20, "最多返回的条数")
	cmd.Flags().StringVar(&query.PluginID, "plugin", "", "只看指定插件 ID")
	cmd.Flags().StringVar(&query.Action, "action", "", "register 或 unregister")
	return cmd
}
