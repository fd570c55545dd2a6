package test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zmcp/odata-sample/internal/auth"
	"github.com/zmcp/odata-sample/internal/client"
	"github.com/zmcp/odata-sample/internal/converter"
	"github.com/zmcp/odata-sample/internal/metadata"
	"github.com/zmcp/odata-sample/internal/models"
	"github.com/zmcp/odata-sample/internal/resolver"
	httptransport "github.com/zmcp/odata-sample/internal/transport/http"
	"github.com/zmcp/odata-sample/internal/transport/stdio"
)

const salesV2Metadata = `<?xml version="1.0" encoding="utf-8"?>
<edmx:Edmx Version="1.0" xmlns:edmx="http://schemas.microsoft.com/ado/2007/06/edmx"
  xmlns:m="http://schemas.microsoft.com/ado/2007/08/dataservices/metadata"
  xmlns:sap="http://www.sap.com/Protocols/SAPData">
  <edmx:DataServices m:DataServiceVersion="2.0">
    <Schema Namespace="ZSALES_SRV" xml:lang="en" sap:schema-version="1" xmlns="http://schemas.microsoft.com/ado/2008/09/edm">
      <ComplexType Name="Price">
        <Property Name="Amount" Type="Edm.Decimal" Precision="16" Scale="3" />
        <Property Name="Currency" Type="Edm.String" MaxLength="5" sap:semantics="currency-code" />
      </ComplexType>
      <EntityType Name="Order" sap:content-version="1">
        <Key><PropertyRef Name="OrderID" /></Key>
        <Property Name="OrderID" Type="Edm.String" Nullable="false" MaxLength="10" />
        <Property Name="Net" Type="ZSALES_SRV.Price" Nullable="false" />
        <Property Name="Released" Type="Edm.Boolean" />
        <Property Name="ChangedAt" Type="Edm.DateTimeOffset" Precision="7" />
        <Property Name="Guid" Type="Edm.Guid" />
        <NavigationProperty Name="ToItems" Relationship="ZSALES_SRV.OrderItems" FromRole="FromRole_Order" ToRole="ToRole_Item" />
      </EntityType>
      <EntityType Name="Item" sap:content-version="1">
        <Key><PropertyRef Name="ItemNo" /></Key>
        <Property Name="ItemNo" Type="Edm.Int32" Nullable="false" />
        <NavigationProperty Name="ToOrder" Relationship="ZSALES_SRV.OrderItems" FromRole="ToRole_Item" ToRole="FromRole_Order" />
      </EntityType>
      <Association Name="OrderItems" sap:content-version="1">
        <End Type="ZSALES_SRV.Order" Multiplicity="1" Role="FromRole_Order" />
        <End Type="ZSALES_SRV.Item" Multiplicity="*" Role="ToRole_Item" />
      </Association>
      <EntityContainer Name="ZSALES_SRV_Entities" m:IsDefaultEntityContainer="true">
        <EntitySet Name="OrderSet" EntityType="ZSALES_SRV.Order" />
        <EntitySet Name="ItemSet" EntityType="ZSALES_SRV.Item" />
        <FunctionImport Name="ReleaseOrder" ReturnType="ZSALES_SRV.Order" EntitySet="OrderSet" m:HttpMethod="POST">
          <Parameter Name="OrderID" Type="Edm.String" Mode="In" MaxLength="10" />
        </FunctionImport>
        <FunctionImport Name="OpenItems" ReturnType="Collection(ZSALES_SRV.Item)" EntitySet="ItemSet" m:HttpMethod="GET" />
      </EntityContainer>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>`

const expectedSalesResult = `{
  "actions": [
    {
      "name": "ReleaseOrder",
      "method": "POST",
      "parameters": {"OrderID": ""},
      "returnType": {
        "OrderID": "", "Net": {"Amount": 0, "Currency": ""}, "Released": false,
        "ChangedAt": "2024-06-30T23:59:58.007Z", "Guid": null, "ToItems": [{}]
      }
    }
  ],
  "functions": [
    {
      "name": "OpenItems",
      "method": "GET",
      "returnType": [{
        "ItemNo": 0,
        "ToOrder": {
          "OrderID": "", "Net": {"Amount": 0, "Currency": ""}, "Released": false,
          "ChangedAt": "2024-06-30T23:59:58.007Z", "Guid": null, "ToItems": [{}]
        }
      }]
    }
  ],
  "entities": {
    "Order": {
      "OrderID": "", "Net": {"Amount": 0, "Currency": ""}, "Released": false,
      "ChangedAt": "2024-06-30T23:59:58.007Z", "Guid": null, "ToItems": [{}]
    },
    "Item": {
      "ItemNo": 0,
      "ToOrder": {
        "OrderID": "", "Net": {"Amount": 0, "Currency": ""}, "Released": false,
        "ChangedAt": "2024-06-30T23:59:58.007Z", "Guid": null, "ToItems": [{}]
      }
    }
  },
  "complexTypes": {"Price": {"Amount": 0, "Currency": ""}}
}`

func newSalesConverter() *converter.Converter {
	conv := converter.NewConverter(metadata.Options{InheritBaseTypes: true}, false)
	conv.SetClock(resolver.FixedClock(time.Date(2024, 6, 30, 23, 59, 58, 7_000_000, time.UTC)))
	return conv
}

func newSAPService(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie("MYSAPSSO2"); err != nil || cookie.Value != "sso" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.HasSuffix(r.URL.Path, "/ZSALES_SRV/$metadata") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(salesV2Metadata))
	}))
}

func TestEndToEndServiceFetch(t *testing.T) {
	service := newSAPService(t)
	defer service.Close()

	mc := client.NewMetadataClient(service.URL+"/sap/opu/odata/sap/ZSALES_SRV", false)
	mc.SetCookies(map[string]string{"MYSAPSSO2": "sso"})

	conv := newSalesConverter()
	conv.SetClient(mc)

	result, err := conv.ConvertURL(context.Background())
	require.NoError(t, err)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, expectedSalesResult, string(data))
}

type staticAuthenticator struct {
	creds *auth.Credentials
}

func (s staticAuthenticator) Authenticate(ctx context.Context) (*auth.Credentials, error) {
	return s.creds, nil
}

func TestEndToEndServiceFetchWithSignIn(t *testing.T) {
	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer aad-token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"InvalidAuthenticationToken","message":"Access token is empty."}}`))
			return
		}
		w.Write([]byte(salesV2Metadata))
	}))
	defer service.Close()

	mc := client.NewMetadataClient(service.URL, false)
	mc.SetRetryConfig(client.DefaultRetryConfig().WithMaxRetries(0))

	conv := newSalesConverter()
	conv.SetClient(mc)

	_, err := conv.ConvertURL(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidAuthenticationToken")

	var authenticator auth.Authenticator = staticAuthenticator{creds: &auth.Credentials{BearerToken: "aad-token"}}
	creds, err := authenticator.Authenticate(context.Background())
	require.NoError(t, err)
	creds.Apply(mc)

	result, err := conv.ConvertURL(context.Background())
	require.NoError(t, err)
	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, expectedSalesResult, string(data))
}

func TestEndToEndServiceFetchSizeLimit(t *testing.T) {
	service := newSAPService(t)
	defer service.Close()

	mc := client.NewMetadataClient(service.URL+"/sap/opu/odata/sap/ZSALES_SRV", false)
	mc.SetCookies(map[string]string{"MYSAPSSO2": "sso"})
	mc.SetMaxSize(int64(len(salesV2Metadata)) / 2)

	conv := newSalesConverter()
	conv.SetClient(mc)

	_, err := conv.ConvertURL(context.Background())
	assert.ErrorIs(t, err, client.ErrMetadataTooLarge)
}

func TestEndToEndHTTPTransport(t *testing.T) {
	conv := newSalesConverter()
	server := httptransport.NewParseServer(":0", conv.Convert, false)

	body, err := json.Marshal(models.ParseRequest{Metadata: salesV2Metadata})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/parse", bytes.NewReader(body))
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, expectedSalesResult, rec.Body.String())

	// Key order follows declaration order
	assert.Less(t, strings.Index(rec.Body.String(), `"Order"`), strings.Index(rec.Body.String(), `"Item"`))
}

func TestEndToEndHTTPTransportMalformedMetadata(t *testing.T) {
	conv := newSalesConverter()
	server := httptransport.NewParseServer(":0", conv.Convert, false)

	req := httptest.NewRequest(http.MethodPost, "/api/parse", strings.NewReader(`{"metadata":"<edmx:Edmx"}`))
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to parse metadata"}`, rec.Body.String())
}

func TestEndToEndStdioTransport(t *testing.T) {
	conv := newSalesConverter()

	var out bytes.Buffer
	tr := stdio.New(conv.Convert)
	tr.SetInput(strings.NewReader(salesV2Metadata))
	tr.SetOutput(&out)
	tr.SetFormat("json", 2, 0)

	require.NoError(t, tr.Start(context.Background()))
	assert.JSONEq(t, expectedSalesResult, out.String())
	assert.True(t, strings.HasPrefix(out.String(), "{\n  \"actions\": ["))
}

func TestEndToEndStdioTree(t *testing.T) {
	conv := newSalesConverter()

	var out bytes.Buffer
	tr := stdio.New(conv.Convert)
	tr.SetInput(strings.NewReader(salesV2Metadata))
	tr.SetOutput(&out)
	tr.SetFormat("tree", 0, 2)

	require.NoError(t, tr.Start(context.Background()))

	expected := strings.Join([]string{
		"Actions (POST)",
		"  ReleaseOrder",
		"    parameters: ▶ {1}",
		"    returnType: ▶ {6}",
		"Functions (GET)",
		"  OpenItems",
		"    returnType: ▶ [1]",
		"Entities",
		"  Order",
		`    OrderID: ""`,
		"    Net: ▶ {2}",
		"    Released: false",
		`    ChangedAt: "2024-06-30T23:59:58.007Z"`,
		"    Guid: null",
		"    ToItems: ▶ [1]",
		"  Item",
		"    ItemNo: 0",
		"    ToOrder: ▶ {6}",
		"Complex Types",
		"  Price",
		"    Amount: 0",
		`    Currency: ""`,
		"",
	}, "\n")
	assert.Equal(t, expected, out.String())
}
