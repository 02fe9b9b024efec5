// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

//go:build integration

package plugin_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
	"github.com/frei0rhost/frei0rhost/internal/plugin"
	pluginlua "github.com/frei0rhost/frei0rhost/internal/plugin/lua"
)

// scriptDir holds the example scripts shipped with the repo.
var scriptDir = filepath.Join("..", "..", "plugins", "lua")

var _ = Describe("Bundled Lua plugins", func() {
	var (
		scanner *plugin.Scanner
		router  plugin.Router
	)

	BeforeEach(func() {
		var err error
		scanner, err = plugin.NewScanner([]string{scriptDir})
		Expect(err).NotTo(HaveOccurred())
		router = plugin.Router{Script: plugin.OpenerFunc(pluginlua.Opener())}
	})

	It("discovers every script", func() {
		candidates, err := scanner.Scan(context.Background())
		Expect(err).NotTo(HaveOccurred())

		names := make([]string, 0, len(candidates))
		for _, c := range candidates {
			names = append(names, c.Name)
		}
		Expect(names).To(ContainElements("plasma", "invert", "crossfade"))
	})

	It("loads and renders every script", func() {
		candidates, err := scanner.Scan(context.Background())
		Expect(err).NotTo(HaveOccurred())

		for _, c := range candidates {
			By("rendering " + c.Name)
			err := plugin.Use(router, c.Path, func(d *plugin.Descriptor) error {
				mgr := plugin.NewManager(d)
				defer mgr.Close()

				inst, err := mgr.Ensure(33, 17)
				if err != nil {
					return err
				}
				Expect(inst.Size()).To(Equal(plugin.Size{Width: 32, Height: 16}))
				Expect(inst.Inputs()).To(HaveLen(d.Kind().Inputs()))
				return mgr.Update(1.5)
			})
			Expect(err).NotTo(HaveOccurred())
		}
	})

	Describe("invert", func() {
		var (
			desc *plugin.Descriptor
			mgr  *plugin.Manager
		)

		BeforeEach(func() {
			path, err := scanner.Resolve(context.Background(), "invert")
			Expect(err).NotTo(HaveOccurred())
			desc, err = plugin.Load(router, path)
			Expect(err).NotTo(HaveOccurred())
			mgr = plugin.NewManager(desc)
		})

		AfterEach(func() {
			mgr.Close()
			Expect(desc.Release()).To(Succeed())
		})

		It("inverts the input and passes it through when disabled", func() {
			inst, err := mgr.Ensure(8, 8)
			Expect(err).NotTo(HaveOccurred())

			model := desc.Info().ColorModel
			for i := range inst.Inputs()[0] {
				inst.Inputs()[0][i] = model.Pack(frei0r.RGBA{R: 10, G: 20, B: 30, A: 255})
			}

			Expect(mgr.Update(0)).To(Succeed())
			Expect(model.Unpack(inst.Output()[0])).To(Equal(frei0r.RGBA{R: 245, G: 235, B: 225, A: 255}))

			edits, err := plugin.ParseAssignments([]string{"enabled=off"})
			Expect(err).NotTo(HaveOccurred())
			resolved, err := plugin.ResolveAll(desc.Params(), edits)
			Expect(err).NotTo(HaveOccurred())
			for _, e := range resolved {
				e.Queue(mgr.Pending())
			}
			Expect(mgr.Flush()).To(Equal(1))

			Expect(mgr.Update(0.1)).To(Succeed())
			Expect(inst.Output()).To(Equal(inst.Inputs()[0]))
		})
	})
})
