/*
	launchpad-bootloader
	Copyright (c) 2023 Arduino LLC.  All right reserved.

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package download fetches firmware images to upload.
package download

import (
	"bytes"
	"crypto"
	_ "crypto/md5"
	_ "crypto/sha1"
	_ "crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/arduino/go-paths-helper"
	"github.com/arduino/launchpad-bootloader/cli/globals"
	"github.com/sirupsen/logrus"
	"go.bug.st/downloader/v2"
)

// DownloadFirmware downloads the firmware at firmwareURL in the download
// directory and verifies it against checksum, "ALGO:hex". An empty checksum
// skips the verification.
func DownloadFirmware(firmwareURL, checksum string) (*paths.Path, error) {
	u, err := url.Parse(firmwareURL)
	if err != nil {
		logrus.Error(err)
		return nil, err
	}
	firmwarePath := globals.DownloadPath.Join("firmwares", path.Base(u.Path))
	if err := firmwarePath.Parent().MkdirAll(); err != nil {
		logrus.Error(err)
		return nil, err
	}
	// Never resume a stale download.
	if firmwarePath.Exist() {
		if err := firmwarePath.Remove(); err != nil {
			logrus.Error(err)
			return nil, err
		}
	}
	d, err := downloader.Download(firmwarePath.String(), firmwareURL)
	if err != nil {
		logrus.Error(err)
		return nil, err
	}
	if err := Download(d); err != nil {
		logrus.Error(err)
		return nil, err
	}
	if checksum != "" {
		if err := VerifyFileChecksum(checksum, firmwarePath); err != nil {
			logrus.Error(err)
			return nil, err
		}
	}
	return firmwarePath, nil
}

// Download will take a downloader.Downloader as parameter. It will Download the file specified in the downloader
func Download(d *downloader.Downloader) error {
	if d == nil {
		// This signal means that the file is already downloaded
		return nil
	}
	if err := d.Run(); err != nil {
		return fmt.Errorf("failed to download file from %s : %s", d.URL, err)
	}
	// The URL is not reachable for some reason
	if d.Resp.StatusCode >= 400 && d.Resp.StatusCode <= 599 {
		return fmt.Errorf("%s", d.Resp.Status)
	}
	return nil
}

// VerifyFileChecksum checks filePath against a checksum in the
// "SHA-256:hex" form.
func VerifyFileChecksum(checksum string, filePath *paths.Path) error {
	split := strings.SplitN(checksum, ":", 2)
	if len(split) != 2 {
		return fmt.Errorf("invalid checksum format: %s", checksum)
	}
	digest, err := hex.DecodeString(split[1])
	if err != nil {
		return fmt.Errorf("invalid hash '%s': %s", split[1], err)
	}

	var algo hash.Hash
	switch split[0] {
	case "SHA-256":
		algo = crypto.SHA256.New()
	case "SHA-1":
		algo = crypto.SHA1.New()
	case "MD5":
		algo = crypto.MD5.New()
	default:
		return fmt.Errorf("unsupported hash algorithm: %s", split[0])
	}

	file, err := filePath.Open()
	if err != nil {
		return fmt.Errorf("opening file: %s", err)
	}
	defer file.Close()
	if _, err := io.Copy(algo, file); err != nil {
		return fmt.Errorf("computing hash: %s", err)
	}
	if !bytes.Equal(algo.Sum(nil), digest) {
		return fmt.Errorf("%s hash differs from the expected one", filePath.Base())
	}
	return nil
}
