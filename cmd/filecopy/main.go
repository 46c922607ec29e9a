// Copyright 2018-2024 CERN
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

func main() {
	flag.Parse()

	cmds := []*command{
		copyCommand(),
		deleteCommand(),
		shareDatasetVersionCommand(),
	}

	mainUsage := createMainUsage(cmds)

	if len(flag.Args()) < 1 {
		fmt.Println(mainUsage)
		os.Exit(1)
	}

	action := flag.Args()[0]
	for _, v := range cmds {
		if v.Name == action {
			if err := v.Parse(flag.Args()[1:]); err != nil {
				fmt.Println(err)
				os.Exit(1)
			}
			if err := v.Action(); err != nil {
				fmt.Println(err)
				os.Exit(1)
			}
			os.Exit(0)
		}
	}

	fmt.Println(mainUsage)
	os.Exit(1)
}

func createMainUsage(cmds []*command) string {
	n := 0
	for _, cmd := range cmds {
		if l := len(cmd.Name); l > n {
			n = l
		}
	}

	usage := "Pipeline worker copying, deleting and importing project data\n\n"
	for _, cmd := range cmds {
		usage += fmt.Sprintf("%s%s%s\n", cmd.Name, strings.Repeat(" ", 4+(n-len(cmd.Name))), cmd.Description())
	}
	return usage
}
